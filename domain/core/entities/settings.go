package entities

// Settings are the user preferences the engine persists alongside canvases.
// Only LLMCouncil changes engine behavior (dispatch mode selection); the
// rest belong to the rendering layer and ride along for persistence.
type Settings struct {
	Theme         string  `json:"theme"`
	ShowAllModels bool    `json:"showAllModels"`
	LLMCouncil    bool    `json:"llmCouncil"`
	MemorySearch  bool    `json:"memorySearch"`
	PanningSpeed  float64 `json:"panningSpeed"`
}

// DefaultSettings returns the settings applied to a fresh workspace
func DefaultSettings() Settings {
	return Settings{
		Theme:         "acrylic",
		ShowAllModels: false,
		LLMCouncil:    false,
		MemorySearch:  false,
		PanningSpeed:  1.0,
	}
}
