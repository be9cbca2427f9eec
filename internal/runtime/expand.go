package runtime

import (
	"encoding/json"
	"fmt"
	"strings"
)

// expansionPayload is the JSON shape asked of the generation model; it
// mirrors the Queryable union of expansion channels.
type expansionPayload struct {
	Lex     string   `json:"lex,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Vec     string   `json:"vec,omitempty"`
	Hyde    string   `json:"hyde,omitempty"`
}

func buildExpansionPrompt(text string, opts ExpandOpts) string {
	var b strings.Builder
	b.WriteString("Expand the following search query into lexical, conceptual, and hypothetical-document sub-queries. ")
	b.WriteString("Respond with a single JSON object with optional keys \"lex\", \"vec\", and \"hyde\", each a string. ")
	b.WriteString("Every expansion must still contain the original query's key terms.\n\n")
	if opts.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", opts.Context)
	}
	fmt.Fprintf(&b, "Query: %s\n", text)
	if !opts.IncludeLexical {
		b.WriteString("Do not include a \"lex\" key.\n")
	}
	return b.String()
}

// parseExpansionResponse extracts a JSON object from raw (tolerating
// surrounding prose) and converts it into Queryables; ok is false if no
// usable expansion was found, and the caller should fall back.
func parseExpansionResponse(raw, originalText string, includeLexical bool) ([]Queryable, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < 0 || end < start {
		return nil, false
	}

	var payload expansionPayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return nil, false
	}

	var out []Queryable
	if includeLexical {
		if payload.Lex != "" {
			out = append(out, Queryable{Type: QueryLex, Text: payload.Lex})
		}
		for _, kw := range payload.Keywords {
			if kw != "" {
				out = append(out, Queryable{Type: QueryLex, Text: kw})
			}
		}
	}
	if payload.Vec != "" {
		out = append(out, Queryable{Type: QueryVec, Text: payload.Vec})
	}
	if payload.Hyde != "" {
		out = append(out, Queryable{Type: QueryHyde, Text: payload.Hyde})
	}
	if len(out) == 0 {
		return nil, false
	}
	_ = originalText
	return out, true
}
