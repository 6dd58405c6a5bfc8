package inference

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Local is the in-process rule-based backend. It answers greetings,
// identity and help questions, uptime queries, echo requests, and simple
// two-operand arithmetic; anything else falls through to a word/character
// analysis of the input.
type Local struct {
	startedAt time.Time
	requests  atomic.Uint64
}

// NewLocal returns a rule-based backend.
func NewLocal() *Local {
	return &Local{startedAt: time.Now()}
}

func (l *Local) Name() string { return "local" }

// Complete never fails: the rule engine always produces some answer.
func (l *Local) Complete(ctx context.Context, input string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.requests.Add(1)

	lower := strings.ToLower(input)

	switch {
	case strings.Contains(lower, "hello"), strings.Contains(lower, "hi "), lower == "hi":
		return "Hello! I am a CortexOS agent running locally.", nil
	case strings.Contains(lower, "who are you"), strings.Contains(lower, "who"):
		return "I am a CortexOS inference agent.", nil
	case strings.Contains(lower, "help"):
		return "I can handle: greetings, math (2+2), echo, uptime, and text analysis.", nil
	case strings.Contains(lower, "time"), strings.Contains(lower, "uptime"):
		uptime := time.Since(l.startedAt).Round(time.Second)
		return fmt.Sprintf("I have been running for %s and served %d requests.", uptime, l.requests.Load()), nil
	case strings.HasPrefix(lower, "echo "):
		return input[len("echo "):], nil
	}

	if result, ok := tryMath(input); ok {
		return "= " + strconv.FormatFloat(result, 'g', -1, 64), nil
	}

	if strings.Contains(lower, "cortex") {
		return "CortexOS is a distributed cognitive operating system.", nil
	}

	words := len(strings.Fields(input))
	chars := len([]rune(input))
	return fmt.Sprintf("Analyzed your message: %d words, %d characters.", words, chars), nil
}

// tryMath evaluates a single two-operand expression like "2+2" or "9 / 3".
func tryMath(input string) (float64, bool) {
	clean := strings.ReplaceAll(input, " ", "")
	for _, op := range []byte{'+', '-', '*', '/'} {
		pos := strings.IndexByte(clean, op)
		if pos <= 0 || pos >= len(clean)-1 {
			continue
		}
		a, errA := strconv.ParseFloat(clean[:pos], 64)
		b, errB := strconv.ParseFloat(clean[pos+1:], 64)
		if errA != nil || errB != nil {
			continue
		}
		switch op {
		case '+':
			return a + b, true
		case '-':
			return a - b, true
		case '*':
			return a * b, true
		case '/':
			if b != 0 {
				return a / b, true
			}
		}
	}
	return 0, false
}
