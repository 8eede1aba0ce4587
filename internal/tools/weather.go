package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cadenza-ai/cadenza/internal/agent"
)

// WeatherReport is one city's canned conditions.
type WeatherReport struct {
	Temperature string `json:"temperature"`
	Condition   string `json:"condition"`
	Humidity    string `json:"humidity"`
}

// defaultWeatherData mirrors the demo data set the tool ships with; a
// real deployment swaps in a live source via NewWeatherTool.
var defaultWeatherData = map[string]WeatherReport{
	"beijing":  {Temperature: "18C", Condition: "sunny", Humidity: "45%"},
	"shanghai": {Temperature: "22C", Condition: "cloudy", Humidity: "60%"},
	"hangzhou": {Temperature: "20C", Condition: "sunny", Humidity: "50%"},
	"shenzhen": {Temperature: "28C", Condition: "hot", Humidity: "70%"},
	"chengdu":  {Temperature: "16C", Condition: "overcast", Humidity: "55%"},
}

// WeatherTool looks up weather conditions by city name.
type WeatherTool struct {
	data map[string]WeatherReport
}

// NewWeatherTool creates a weather tool. A nil data map uses the
// built-in demo data set.
func NewWeatherTool(data map[string]WeatherReport) *WeatherTool {
	if data == nil {
		data = defaultWeatherData
	}
	return &WeatherTool{data: data}
}

func (t *WeatherTool) Name() string { return "get_weather" }

func (t *WeatherTool) Description() string {
	return "Get weather of a location, the user should supply a location first."
}

func (t *WeatherTool) Schema() json.RawMessage {
	return mustSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"location": map[string]interface{}{
				"type":        "string",
				"description": "City name, e.g. 'Beijing'.",
			},
		},
		"required": []string{"location"},
	})
}

func (t *WeatherTool) Execute(_ context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	location := strings.TrimSpace(input.Location)
	if location == "" {
		return toolError("location is required"), nil
	}

	report, ok := t.data[strings.ToLower(location)]
	if !ok {
		known := make([]string, 0, len(t.data))
		for city := range t.data {
			known = append(known, city)
		}
		sort.Strings(known)
		return toolError(fmt.Sprintf("no weather data for %q; known locations: %s",
			location, strings.Join(known, ", "))), nil
	}

	return &agent.ToolResult{Content: fmt.Sprintf("Weather in %s: %s, %s, humidity %s",
		location, report.Temperature, report.Condition, report.Humidity)}, nil
}
