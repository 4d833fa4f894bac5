package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// ReservoirRecord is the self-describing persistent form of the neural
// substrate. Weights are stored row-major with len == Size*Size.
type ReservoirRecord struct {
	VersionedRecord
	Size             int          `json:"size"`
	LeakRate         float32      `json:"leak_rate"`
	Weights          []float32    `json:"weights"`
	InputWeights     []float32    `json:"input_weights"`
	State            []float32    `json:"state"`
	Activity         []float32    `json:"activity"`
	Positions        [][3]float32 `json:"positions"`
	SemanticExposure []float32    `json:"semantic_exposure"`
	AuditoryExposure []float32    `json:"auditory_exposure"`
	LimbicExposure   []float32    `json:"limbic_exposure"`
}

// TraitRecord is the heritable configuration carried across sessions. All
// traits live in [0,1]; SeedVector is a fixed-length crystallization of the
// previous session.
type TraitRecord struct {
	VersionedRecord
	Generation       int       `json:"generation"`
	StressTolerance  float32   `json:"stress_tolerance"`
	Curiosity        float32   `json:"curiosity"`
	EnergyEfficiency float32   `json:"energy_efficiency"`
	Paranoia         float32   `json:"paranoia"`
	RefractiveIndex  float32   `json:"refractive_index"`
	SurvivalDrive    float32   `json:"survival_drive"`
	Stoicism         float32   `json:"stoicism"`
	SeedVector       []float32 `json:"seed_vector"`
}

// Voice labels the narrative channel an event belongs to.
type Voice string

const (
	VoiceSensory Voice = "sensory"
	VoiceCortex  Voice = "cortex"
	VoiceChem    Voice = "chem"
	VoiceSystem  Voice = "system"
	VoiceVocal   Voice = "vocal"
)

// EventRecord is one entry of the append-only narrative journal.
type EventRecord struct {
	VersionedRecord
	ID        string `json:"id"`
	Voice     Voice  `json:"voice"`
	Text      string `json:"text"`
	Tick      uint64 `json:"tick"`
	CreatedMS int64  `json:"created_ms"`
}
