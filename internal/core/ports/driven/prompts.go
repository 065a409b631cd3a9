package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptThemeLabel is the system prompt for naming a cluster.
	// The user message is a JSON payload of aspects, quotes and counts.
	PromptThemeLabel = "theme_label"

	// PromptActionSynthesis is the system prompt for root causes and actions.
	// The user message is a JSON payload of the theme and its evidence.
	PromptActionSynthesis = "action_synthesis"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use built-in default prompts.
	SetPromptStore(store PromptStore)
}

// defaultPrompts are the built-in templates used when no PromptStore is set
// and as the initial content of user-editable prompt files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	PromptThemeLabel: `You name recurring themes in SaaS customer reviews for a product team.

The user message is a JSON object with:
- product_id: the product the reviews are about
- cluster_id: an opaque identifier for the group of similar reviews
- top_aspects: the most frequent product areas mentioned, most frequent first
- example_quotes: short quotes from representative reviews, each with its review id
- counts.reviews_in_cluster: how many reviews the quotes were drawn from

Return ONLY a JSON object, with no prose before or after it:
{"name": "<2-80 characters, a short noun phrase>", "summary": "<5-400 characters, one or two sentences describing the shared complaint or praise>", "severity": "low|medium|high"}

Use "high" when customers describe blocked work, data loss, billing errors or churn. Use "low" for cosmetic issues or mild suggestions. Otherwise use "medium".`,

	PromptActionSynthesis: `You are a product strategist turning a customer review theme into root causes and recommended actions.

The user message starts with "THEME INPUT:" followed by a JSON object with theme_id, theme, summary and examples. Each example has a snippet and an evidence reference {type, id}.

Return ONLY a JSON object, with no prose before or after it:
{
  "root_causes": ["<1 to 6 short hypotheses explaining why this theme occurs>"],
  "actions": [
    {
      "kind": "product|gtm",
      "description": "<specific and testable recommendation>",
      "impact": <integer 1-5>,
      "effort": <integer 1-5>,
      "evidence": ["<ids from the input examples>"]
    }
  ]
}

Provide between 3 and 5 actions. Every action must cite at least one evidence id taken from the input examples. Do not invent ids.`,
}

// DefaultPrompt returns the built-in template for name, or "" when unknown.
func DefaultPrompt(name string) string {
	return defaultPrompts[name]
}

// DefaultPromptNames returns the names of all built-in templates.
func DefaultPromptNames() []string {
	return []string{PromptThemeLabel, PromptActionSynthesis}
}
