package agent

// Preset configurations for the stock agent variants. Variants share
// the one turn executor and differ only in prompt, tool subset, and
// iteration cap.

// SimpleConfig is a plain conversational agent with no tools.
func SimpleConfig(name, model string) Config {
	return Config{
		Name:         name,
		Type:         "simple",
		Description:  "Plain conversational agent without tool access",
		Model:        model,
		SystemPrompt: "You are a helpful assistant. Answer directly and concisely.",
	}
}

// AnalysisConfig is a reasoning-oriented agent that structures its
// answers as findings.
func AnalysisConfig(name, model string, tools *Registry) Config {
	return Config{
		Name:        name,
		Type:        "analysis",
		Description: "Structured analysis of data and problems",
		Model:       model,
		Tools:       tools,
		SystemPrompt: "You are an analysis assistant. Break the question down, " +
			"examine the evidence step by step, and present conclusions as a " +
			"short list of findings with the reasoning behind each.",
	}
}

// CodeConfig is a programming-focused agent with a tighter iteration
// cap, since code tasks converge in fewer tool rounds.
func CodeConfig(name, model string, tools *Registry) Config {
	return Config{
		Name:          name,
		Type:          "code",
		Description:   "Programming assistant with file and shell access",
		Model:         model,
		Tools:         tools,
		MaxIterations: 5,
		SystemPrompt: "You are a programming assistant. Prefer showing working " +
			"code over describing it. Use the available tools to inspect and " +
			"modify files when asked.",
	}
}

// GeneralConfig is the default tool-calling assistant.
func GeneralConfig(name, model string, tools *Registry, memory MemoryHooks) Config {
	return Config{
		Name:        name,
		Type:        "function_call",
		Description: "General assistant with the full tool set",
		Model:       model,
		Tools:       tools,
		Memory:      memory,
		SystemPrompt: "You are a capable assistant with access to tools. Use a " +
			"tool when it gives a better answer than recall; otherwise answer " +
			"directly.",
	}
}
