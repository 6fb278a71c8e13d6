package config

import "time"

// Clip Generation Constants
const (
	// DefaultClipDuration is the duration a new slot starts with, in seconds
	DefaultClipDuration = 4

	// CostPerSecond is the displayed price of one generated second
	CostPerSecond = 0.10

	// ClipPollInterval is the wait between clip status checks
	ClipPollInterval = 3 * time.Second

	// JobPollInterval is the wait between job status checks
	JobPollInterval = 2 * time.Second
)

// ClipDurations lists the clip lengths the generation service accepts
var ClipDurations = []int{4, 8, 12}

// Storyboard Constants
const (
	// DefaultSlotCount is the number of slots a fresh storyboard shows
	DefaultSlotCount = 1

	// MaxSlots caps the storyboard slot count
	MaxSlots = 11
)

// Script Constants
const (
	// MinClips is the fewest clips a script is split into
	MinClips = 3

	// MaxClips is the default upper bound for script decomposition (11 x 4s = 44s)
	MaxClips = 11
)

// Credential Constants
const (
	// CredentialKey is the fixed key the API key is stored under
	CredentialKey = "openai_api_key"

	// CredentialDir is the directory under $HOME holding client state
	CredentialDir = ".clipstudio"

	// CredentialFile is the file name of the file-backed credential store
	CredentialFile = "credentials.json"
)

// YouTube Constants
const (
	// YouTubeCategoryID for Film & Animation
	YouTubeCategoryID = "1"

	// YouTubePrivacyStatus sets video visibility
	YouTubePrivacyStatus = "private"
)

// IsValidDuration reports whether seconds is one of ClipDurations
func IsValidDuration(seconds int) bool {
	for _, d := range ClipDurations {
		if d == seconds {
			return true
		}
	}
	return false
}

// NextDuration returns the duration after seconds in ClipDurations, wrapping around
func NextDuration(seconds int) int {
	for i, d := range ClipDurations {
		if d == seconds {
			return ClipDurations[(i+1)%len(ClipDurations)]
		}
	}
	return ClipDurations[0]
}
