package session

import (
	"fmt"
	"math"
	"time"
)

// Score counts answers equal to the key. A nil answer is always incorrect and
// length mismatches are tolerated.
func Score(answers []*int, key []int) int {
	score := 0
	for i, correct := range key {
		if i >= len(answers) || answers[i] == nil {
			continue
		}
		if *answers[i] == correct {
			score++
		}
	}
	return score
}

// Accuracy is round(score / total * 100); zero when there are no questions.
func Accuracy(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

// Elapsed splits a duration into whole minutes and whole seconds.
func Elapsed(d time.Duration) (minutes, seconds int) {
	if d < 0 {
		return 0, 0
	}
	return int(d / time.Minute), int(d / time.Second)
}

// FormatTimeTaken renders the legacy "N min" display string.
func FormatTimeTaken(minutes int) string {
	return fmt.Sprintf("%d min", minutes)
}
