// Package router maps a job's model choice and language hint to a worker
// queue. Routing is a pure function over its inputs: identical inputs
// always produce an identical decision, so behavior is fully testable and
// a routing change is a table change, never a heuristic drift.
package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Model families and their queues. One queue per mutually incompatible
// execution environment.
const (
	ModelLarge = "whisper-large"
	ModelFast  = "whisper-fast"
	ModelAuto  = "auto"
)

// routingTableVersion identifies the auto-routing heuristic in logs so
// operators can correlate decisions across deployments.
const routingTableVersion = "v1"

// autoTable is the versioned language→model mapping used for "auto".
// CJK languages route to the large model, which is empirically stronger
// on them; everything else takes the fast general-purpose model.
var autoTable = map[string]string{
	"zh":  ModelLarge,
	"yue": ModelLarge,
	"ja":  ModelLarge,
	"ko":  ModelLarge,
}

// KnownModels lists the routable model families.
var KnownModels = []string{ModelFast, ModelLarge}

// Sentinel errors surfaced synchronously to the submitter.
var (
	ErrUnknownModel   = errors.New("unknown model")
	ErrNoHealthyQueue = errors.New("no available worker queue")
)

// QueueHealth reports which queues currently have a live worker attached.
type QueueHealth map[string]bool

// Decision is the routing outcome. It is logged with the job but never
// persisted as its own entity.
type Decision struct {
	Queue  string `json:"queue"`
	Reason string `json:"reason"`
}

// Route selects a queue for the given model choice and language hint.
// Unknown model choices fail fast; a requested-but-unhealthy queue falls
// back to any healthy one; no healthy queue at all is an error — jobs are
// never enqueued into a dead queue.
func Route(modelChoice, languageHint string, health QueueHealth) (Decision, error) {
	switch modelChoice {
	case ModelAuto:
		return routeAuto(languageHint, health)
	case ModelFast, ModelLarge:
		return routeExplicit(modelChoice, health)
	default:
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownModel, modelChoice)
	}
}

func routeExplicit(model string, health QueueHealth) (Decision, error) {
	if health[model] {
		return Decision{
			Queue:  model,
			Reason: fmt.Sprintf("explicit model choice %s", model),
		}, nil
	}
	fallback, ok := anyHealthy(health)
	if !ok {
		return Decision{}, ErrNoHealthyQueue
	}
	return Decision{
		Queue:  fallback,
		Reason: "fallback: requested queue unhealthy",
	}, nil
}

func routeAuto(languageHint string, health QueueHealth) (Decision, error) {
	lang := normalizeLanguage(languageHint)

	preferred, ok := autoTable[lang]
	reason := fmt.Sprintf("auto (%s): default model for language %q", routingTableVersion, lang)
	if ok {
		reason = fmt.Sprintf("auto (%s): language %q routes to %s", routingTableVersion, lang, preferred)
	} else {
		preferred = ModelFast
	}

	if health[preferred] {
		return Decision{Queue: preferred, Reason: reason}, nil
	}
	fallback, found := anyHealthy(health)
	if !found {
		return Decision{}, ErrNoHealthyQueue
	}
	return Decision{
		Queue:  fallback,
		Reason: "fallback: requested queue unhealthy",
	}, nil
}

// anyHealthy picks a healthy queue deterministically (lowest name wins)
// so routing stays reproducible under identical health input.
func anyHealthy(health QueueHealth) (string, bool) {
	names := make([]string, 0, len(health))
	for name, healthy := range health {
		if healthy {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return names[0], true
}

// normalizeLanguage lowercases and strips region subtags ("zh-TW" → "zh").
func normalizeLanguage(hint string) string {
	lang := strings.ToLower(strings.TrimSpace(hint))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// ValidModelChoice reports whether the submitter's model field is usable.
func ValidModelChoice(model string) bool {
	if model == ModelAuto {
		return true
	}
	for _, m := range KnownModels {
		if m == model {
			return true
		}
	}
	return false
}
