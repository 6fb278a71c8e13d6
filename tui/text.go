package tui

// UI Text Constants
const (
	TextStoryboardTitle = "🎬 Clip Studio · Storyboard"
	TextWizardTitle     = "🎬 Clip Studio · Script to Video"

	TextEmptyPrompt      = "(no prompt yet, press enter to write one)"
	TextGenerating       = "Generating..."
	TextGeneratingVideo  = "Generating video..."
	TextGenerateButton   = "[g] Generate"
	TextDownloadButton   = "[s] Download"
	TextNoKeySaved       = "No API key saved. Generate with the server's default key? (y/n)"
	TextKeyHint          = "Save a key with 'K' or `clipstudio key set`"
	TextReferencePrompt  = "Reference image path (jpeg, png, gif, webp):"
	TextAPIKeyPrompt     = "OpenAI API key (stored locally):"
	TextScriptPlaceholder = "Paste or write your script here..."
	TextStylePlaceholder = "Global style, e.g. cinematic, watercolor, anime"

	// Footers
	TextFooterStoryboard = "↑/↓ select · enter edit · d duration · g generate · i image · x remove image · s save · +/- clips · K key · q quit"
	TextFooterEditing    = "esc save prompt · ctrl+c quit"
	TextFooterInput      = "enter confirm · esc cancel"
	TextFooterConfirm    = "y use default key · n cancel"

	TextFooterWizardInput    = "tab switch field · ctrl+d duration · pgup/pgdown max clips · ctrl+s split script · ctrl+c quit"
	TextFooterWizardReview   = "↑/↓ select · enter edit · g generate video · b back · q quit"
	TextFooterWizardProgress = "q quit (the job keeps running on the server)"
	TextFooterWizardResult   = "s save video · n new video · q quit"
	TextFooterWizardError    = "r try again · q quit"
)
