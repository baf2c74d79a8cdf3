package task

import "github.com/hearthai/hearth/pkg/modeltypes"

// rawFinishReasonAliases maps finish-reason spellings an engine backend
// might emit to the canonical modeltypes.FinishReason vocabulary. Different
// backends spell the same outcome differently (eogToken/eog_token/stop,
// stopTrigger/stopGenerationTrigger/customStopTrigger, functionCall/tool_calls),
// and the source canonicalizes the natural-stop and stop-sequence-match
// spellings into two distinct values rather than one (SPEC_FULL.md §9).
var rawFinishReasonAliases = map[string]modeltypes.FinishReason{
	"stop":              modeltypes.FinishReasonEogToken,
	"eog_token":         modeltypes.FinishReasonEogToken,
	"eogToken":          modeltypes.FinishReasonEogToken,
	"end_of_generation": modeltypes.FinishReasonEogToken,

	"stop_trigger":          modeltypes.FinishReasonStopTrigger,
	"stopTrigger":           modeltypes.FinishReasonStopTrigger,
	"stopGenerationTrigger": modeltypes.FinishReasonStopTrigger,
	"customStopTrigger":     modeltypes.FinishReasonStopTrigger,

	"length":     modeltypes.FinishReasonMaxTokens,
	"max_tokens": modeltypes.FinishReasonMaxTokens,
	"maxTokens":  modeltypes.FinishReasonMaxTokens,

	"tool_calls":    modeltypes.FinishReasonFunctionCall,
	"toolCalls":     modeltypes.FinishReasonFunctionCall,
	"function_call": modeltypes.FinishReasonFunctionCall,
	"functionCall":  modeltypes.FinishReasonFunctionCall,

	"cancel":    modeltypes.FinishReasonCancel,
	"cancelled": modeltypes.FinishReasonCancel,
	"canceled":  modeltypes.FinishReasonCancel,

	"abort":   modeltypes.FinishReasonAbort,
	"aborted": modeltypes.FinishReasonAbort,

	"timeout":   modeltypes.FinishReasonTimeout,
	"timed_out": modeltypes.FinishReasonTimeout,
	"timedOut":  modeltypes.FinishReasonTimeout,
}

// NormalizeFinishReason resolves a raw, engine-specific finish-reason
// spelling to the canonical modeltypes.FinishReason vocabulary. An
// unrecognized spelling degrades to FinishReasonOther rather than panicking
// or erroring, since a new backend's vocabulary should never break the
// task executor.
func NormalizeFinishReason(raw string) modeltypes.FinishReason {
	if fr, ok := rawFinishReasonAliases[raw]; ok {
		return fr
	}
	return modeltypes.FinishReasonOther
}
