package main

import (
	"reflect"
	"strings"
	"testing"

	"genairadio"
)

func cliQuestions() []genairadio.Question {
	return []genairadio.Question{
		{Prompt: "The _____ is booming.", Options: []string{"India", "economy", "Sports", "Tech"}, CorrectAnswer: "economy"},
		{Prompt: "Rivers carve _____ slowly.", Options: []string{"canyons", "Health", "Science", "Economy"}, CorrectAnswer: "canyons"},
	}
}

func TestPlayQuiz(t *testing.T) {
	session := genairadio.NewQuizSession("offline", cliQuestions(), 2)
	in := strings.NewReader("z\nb\nHealth\n")
	var out strings.Builder

	score := playQuiz(session, in, &out)
	if score.String() != "1/2" {
		t.Fatalf("score = %s, want 1/2\n%s", score, out.String())
	}
	for _, want := range []string{
		"Question 1 of 2",
		"Please enter A, B, C, or D",
		"Q1: ✅ Correct (economy)",
		"Q2: ❌ Wrong | Correct: canyons",
		"Final Score: 1/2",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q\n%s", want, out.String())
		}
	}
}

func TestPlayQuizAbandoned(t *testing.T) {
	session := genairadio.NewQuizSession("offline", cliQuestions(), 2)
	var out strings.Builder

	score := playQuiz(session, strings.NewReader("b\n"), &out)
	if score.Total != 0 || !strings.Contains(out.String(), "Quiz abandoned.") {
		t.Fatalf("score = %+v\n%s", score, out.String())
	}
}

func TestPlayQuizEmpty(t *testing.T) {
	session := genairadio.NewQuizSession("offline", nil, 5)
	var out strings.Builder

	score := playQuiz(session, strings.NewReader(""), &out)
	if score.String() != "0/0" {
		t.Fatalf("score = %s", score)
	}
	if !strings.Contains(out.String(), "Not enough material") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" Sports, AI Technology ,,History ")
	want := []string{"Sports", "AI Technology", "History"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitList = %q, want %q", got, want)
	}
}
