package macro

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// Kind identifies which external history a dynamic macro draws from.
type Kind string

const (
	ScriptHistory Kind = "scriptHistory"
	ChatHistory   Kind = "chatHistory"
)

// DefaultCount is the number of history entries fetched when a dynamic
// macro names no explicit count.
const DefaultCount = 10

// Resolver fetches the literal replacement text for a deferred dynamic
// macro: the last count narrative entries for a script, or the last count
// conversational turns for a chat.
type Resolver interface {
	Resolve(ctx context.Context, kind Kind, id string, count int) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, kind Kind, id string, count int) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, kind Kind, id string, count int) (string, error) {
	return f(ctx, kind, id, count)
}

// Placeholder renders the deferred-placeholder token for a dynamic macro.
func Placeholder(kind Kind, id string, count int) string {
	return fmt.Sprintf("[DYNAMIC:%s:%s:%d]", kind, id, count)
}

var placeholderPattern = regexp.MustCompile(`\[DYNAMIC:([A-Za-z]+):([^:\]]*):(\d+)\]`)

// ResolveDeferred substitutes every deferred placeholder in text through the
// resolver. A resolution failure degrades to an inline failure marker, never
// an error.
func ResolveDeferred(ctx context.Context, text string, resolver Resolver) string {
	if resolver == nil {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		kind := Kind(sub[1])
		id := sub[2]
		count, _ := strconv.Atoi(sub[3])

		replacement, err := resolver.Resolve(ctx, kind, id, count)
		if err != nil {
			return fmt.Sprintf("[dynamic macro failed: %s]", kind)
		}
		return replacement
	})
}
