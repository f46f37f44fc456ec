package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"genairadio"

	openai "github.com/sashabaranov/go-openai"
)

func main() {
	var (
		topics     = flag.String("topics", "", "Comma-separated list of exactly 3 topics")
		username   = flag.String("user", "cli", "Listener name recorded with the podcast")
		textFile   = flag.String("text", "", "Build a quiz from this narration file instead of generating a podcast (- for stdin)")
		numQ       = flag.Int("questions", 0, "Number of quiz questions (default from config)")
		seed       = flag.Int64("seed", 0, "Random seed for quiz generation (0 = time based)")
		outputFile = flag.String("output", "", "Output file for JSON (default: stdout)")
		playMode   = flag.Bool("play", false, "Play the quiz interactively")
		verbose    = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	log := genairadio.Logger()
	genairadio.SetVerbose(*verbose)

	cfg, err := genairadio.LoadConfig(*textFile == "")
	if err != nil {
		log.Fatalw("Failed to load config", "error", err)
	}
	if *numQ <= 0 {
		*numQ = cfg.Quiz.Length
	}

	var rnd genairadio.Randomizer
	if *seed != 0 {
		rnd = rand.New(rand.NewSource(*seed))
	}
	builder := genairadio.NewQuizBuilder(genairadio.NewMCQGenerator(rnd), genairadio.DefaultDistractors(), *numQ)

	var (
		podcastID string
		narration string
		output    interface{}
	)

	if *textFile != "" {
		narration, err = readNarration(*textFile)
		if err != nil {
			log.Fatalw("Failed to read narration", "file", *textFile, "error", err)
		}
		podcastID = "offline"
	} else {
		if *topics == "" {
			log.Fatalw("Topics are required. Use -topics flag.", "catalog", strings.Join(genairadio.Topics, ", "))
		}
		podcast, err := generatePodcast(cfg, *username, splitList(*topics))
		if err != nil {
			if errors.Is(err, genairadio.ErrUpstreamFailure) {
				log.Fatalw("Podcast generation failed, try again later", "error", err)
			}
			log.Fatalw("Podcast generation failed", "error", err)
		}
		podcastID = podcast.ID
		narration = podcast.Narration
		output = podcast
	}

	session := builder.Build(podcastID, narration)

	if *playMode {
		playQuiz(session, os.Stdin, os.Stdout)
		return
	}

	if output == nil {
		output = session.Questions()
	}
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		log.Fatalw("Failed to marshal output", "error", err)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, data, 0644); err != nil {
			log.Fatalw("Failed to write output file", "error", err)
		}
		log.Infow("Output saved", "file", *outputFile)
		return
	}
	fmt.Println(string(data))
}

func generatePodcast(cfg *genairadio.Config, username string, topics []string) (*genairadio.Podcast, error) {
	db, err := genairadio.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	defer db.CloseDB()
	if err := db.CreateTables(); err != nil {
		return nil, err
	}

	client := openai.NewClient(cfg.OpenAIKey)
	generator := genairadio.NewPodcastGenerator(
		genairadio.NewOpenAINarrator(client, cfg.OpenAI.NarrationModel),
		genairadio.NewOpenAISpeech(client, cfg.OpenAI.SpeechModel, cfg.OpenAI.Voice),
		db,
		cfg.AudioDir,
		cfg.LogDir,
		cfg.Upstream.RetryPolicy(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	return generator.Generate(ctx, genairadio.PodcastRequest{Username: username, Topics: topics})
}

func readNarration(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// playQuiz runs one attempt on the terminal. Unknown input re-prompts the
// same question.
func playQuiz(session *genairadio.QuizSession, in io.Reader, out io.Writer) genairadio.Score {
	scanner := bufio.NewScanner(in)
	letters := "ABCD"

	fmt.Fprintln(out, "🧠 Podcast Quiz")
	if session.Short() {
		fmt.Fprintf(out, "⚠️  Only %d questions could be generated from this podcast.\n", session.Len())
	}
	fmt.Fprintln(out)

	for !session.Completed() {
		question, _ := session.Current()
		fmt.Fprintf(out, "Question %d of %d:\n", session.State().Index+1, session.Len())
		fmt.Fprintf(out, "%s\n\n", question.Prompt)
		for i, option := range question.Options {
			fmt.Fprintf(out, "%c) %s\n", letters[i], option)
		}
		fmt.Fprintln(out)

		for {
			fmt.Fprint(out, "Your answer (A/B/C/D): ")
			if !scanner.Scan() {
				fmt.Fprintln(out, "\nQuiz abandoned.")
				return genairadio.Score{}
			}
			selection := strings.TrimSpace(scanner.Text())
			if idx := strings.Index(letters, strings.ToUpper(selection)); len(selection) == 1 && idx >= 0 && idx < len(question.Options) {
				selection = question.Options[idx]
			}
			err := session.SubmitAnswer(selection)
			if errors.Is(err, genairadio.ErrInvalidSelection) {
				fmt.Fprintln(out, "Please enter A, B, C, or D")
				continue
			}
			break
		}
		fmt.Fprintln(out)
	}

	score, _ := session.Score()
	fmt.Fprintln(out, "🎯 Quiz Results")
	for i, r := range score.Results {
		if r.Correct {
			fmt.Fprintf(out, "Q%d: ✅ Correct (%s)\n", i+1, r.Question.CorrectAnswer)
		} else {
			fmt.Fprintf(out, "Q%d: ❌ Wrong | Correct: %s\n", i+1, r.Question.CorrectAnswer)
		}
	}
	fmt.Fprintf(out, "\n🏆 Final Score: %s\n", score)

	switch percentage := score.Percent(); {
	case score.Total == 0:
		fmt.Fprintln(out, "📭 Not enough material for a quiz this time.")
	case percentage >= 80:
		fmt.Fprintln(out, "🌟 Excellent work!")
	case percentage >= 60:
		fmt.Fprintln(out, "👍 Good job!")
	default:
		fmt.Fprintln(out, "📚 Keep listening!")
	}
	return score
}
