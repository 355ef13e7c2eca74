// Package record defines the utterance record store — the canonical ordered
// list of per-utterance metadata that every dubbing stage reads and mutates.
//
// A [Utterance] describes one contiguous speech segment: its time range in
// the source track, the cut audio that backs it, the transcript and its
// translation, the speaker attribution, and the synthesis outputs. Records
// are created once by [Merge] from raw diarized segments and then enriched
// in place by each pipeline stage; positional order is never changed by the
// stages, so index i always corresponds to the same temporal slot.
//
// The store is serialized as a JSON array of records ([Save], [LoadFile]).
// That file is the only durable checkpoint between the automatic pipeline
// run and the operator review loop, and it must round-trip losslessly so
// that [Diff] can compare an edited copy against the original.
package record

// Gender is the SSML voice gender attached to a speaker. It drives voice
// pool filtering during assignment.
type Gender string

const (
	GenderMale    Gender = "Male"
	GenderFemale  Gender = "Female"
	GenderNeutral Gender = "Neutral"
)

// IsValid reports whether g is a recognised gender value.
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderNeutral:
		return true
	}
	return false
}

// Tuning holds the per-utterance synthesis parameters. Which subset is
// meaningful depends on the synthesis backend: cloud TTS reads pitch, speed
// and volume gain; ElevenLabs reads stability, similarity, style and speaker
// boost. The values are derived from the speaker's gender and the backend
// choice, not edited independently.
type Tuning struct {
	Pitch        float64 `json:"pitch,omitempty"`
	Speed        float64 `json:"speed,omitempty"`
	VolumeGainDB float64 `json:"volume_gain_db,omitempty"`

	Stability       float64 `json:"stability,omitempty"`
	SimilarityBoost float64 `json:"similarity_boost,omitempty"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// Default cloud TTS tuning values.
const (
	defaultFemalePitch = -5.0
	defaultMalePitch   = -10.0
	defaultSpeed       = 1.0
	defaultVolumeGain  = 16.0
)

// Default ElevenLabs tuning values.
const (
	defaultStability       = 0.5
	defaultSimilarityBoost = 0.75
	defaultStyle           = 0.0
)

// Backend selects which synthesis backend a tuning set targets.
type Backend string

const (
	// BackendCloudTTS targets a cloud text-to-speech service with
	// pitch/speed/volume parameters.
	BackendCloudTTS Backend = "cloudtts"

	// BackendElevenLabs targets the ElevenLabs voice API with
	// stability/similarity/style parameters.
	BackendElevenLabs Backend = "elevenlabs"
)

// IsValid reports whether b is a recognised backend.
func (b Backend) IsValid() bool {
	return b == BackendCloudTTS || b == BackendElevenLabs
}

// DefaultTuning derives the synthesis parameters for a speaker of the given
// gender on the given backend. Female voices get a smaller downward pitch
// shift than male voices; neutral voices are treated as male.
func DefaultTuning(gender Gender, backend Backend) Tuning {
	if backend == BackendElevenLabs {
		return Tuning{
			Stability:       defaultStability,
			SimilarityBoost: defaultSimilarityBoost,
			Style:           defaultStyle,
			UseSpeakerBoost: true,
		}
	}
	pitch := defaultMalePitch
	if gender == GenderFemale {
		pitch = defaultFemalePitch
	}
	return Tuning{
		Pitch:        pitch,
		Speed:        defaultSpeed,
		VolumeGainDB: defaultVolumeGain,
	}
}

// Utterance is one detected speech segment and everything the pipeline has
// learned about it so far. Fields are filled progressively: Start/End by
// diarization and merging, Path by the cut stage, Text by transcription,
// TranslatedText by translation, SpeakerID/Gender by speaker labeling,
// AssignedVoice by voice assignment, and DubbedPath by synthesis.
type Utterance struct {
	// Start and End bound the segment in seconds from the beginning of the
	// source track. End > Start, and records never overlap after merging.
	Start float64 `json:"start"`
	End   float64 `json:"end"`

	// Path points at the audio clip cut from the full track for this
	// segment. The record owns the clip exclusively; the path only changes
	// when the time range is edited, which forces a re-cut.
	Path string `json:"path,omitempty"`

	// Chunks lists the original clip references of segments that were
	// collapsed into this record by merging, in temporal order.
	Chunks []string `json:"chunks,omitempty"`

	// Text is the source-language transcript; TranslatedText the
	// target-language rendition.
	Text           string `json:"text,omitempty"`
	TranslatedText string `json:"translated_text,omitempty"`

	// ForDubbing controls whether this record is synthesised at all. When
	// false the original clip audio is carried through unmodified.
	ForDubbing bool `json:"for_dubbing"`

	// SpeakerID groups records by speaker for voice assignment. It is a
	// stable grouping key, not guaranteed unique per physical speaker —
	// the operator may reassign it during review.
	SpeakerID string `json:"speaker_id,omitempty"`

	// Gender filters the candidate voice pool for this speaker.
	Gender Gender `json:"ssml_gender,omitempty"`

	// AssignedVoice is the synthesis voice identifier once resolved, empty
	// until voice assignment runs.
	AssignedVoice string `json:"assigned_voice,omitempty"`

	// DubbedPath is the synthesised audio for this record, empty until the
	// synthesis stage runs.
	DubbedPath string `json:"dubbed_path,omitempty"`

	// Tuning carries the backend synthesis parameters for this record.
	Tuning Tuning `json:"tuning,omitzero"`
}

// Duration returns the segment length in seconds.
func (u Utterance) Duration() float64 {
	return u.End - u.Start
}

// Clone returns a deep copy of u.
func (u Utterance) Clone() Utterance {
	c := u
	if u.Chunks != nil {
		c.Chunks = append([]string(nil), u.Chunks...)
	}
	return c
}

// CloneAll returns a deep copy of records.
func CloneAll(records []Utterance) []Utterance {
	if records == nil {
		return nil
	}
	out := make([]Utterance, len(records))
	for i, u := range records {
		out[i] = u.Clone()
	}
	return out
}
