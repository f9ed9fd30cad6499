package convert

var stopReasonMap = map[string]string{
	"stop":           "end_turn",
	"length":         "max_tokens",
	"tool_calls":     "tool_use",
	"content_filter": "end_turn",
}

// MapStopReason translates an upstream finish reason into the client
// protocol's stop reason. Unknown or empty reasons map to end_turn.
func MapStopReason(finishReason string) string {
	if mapped, ok := stopReasonMap[finishReason]; ok {
		return mapped
	}

	return "end_turn"
}
