package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"calflow/internal/config"
	"calflow/internal/outbound"
)

// Weather is the current conditions for a city, in metric units.
type Weather struct {
	City        string  `json:"city"`
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

// Block renders the conditions as a description block.
func (w Weather) Block() string {
	return fmt.Sprintf("Weather in %s:\nTemperature: %.1f°C\nCondition: %s\nHumidity: %d%%\nWind: %.1f m/s",
		w.City, w.Temperature, w.Condition, w.Humidity, w.WindSpeed)
}

type OpenWeather struct {
	client  *outbound.Client
	baseURL string
	apiKey  string
}

func NewOpenWeather(client *outbound.Client, baseURL, apiKey string) *OpenWeather {
	return &OpenWeather{client: client, baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey}
}

func (o *OpenWeather) Current(ctx context.Context, city string) (Weather, error) {
	if o.apiKey == "" {
		return Weather{}, config.Missing("WEATHER_API_KEY")
	}

	var payload struct {
		Name string `json:"name"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	}
	err := o.client.Do(ctx, outbound.Call{
		Service: "openweather",
		Op:      "current",
		URL:     o.baseURL + "/weather",
		Query:   url.Values{"q": {city}, "appid": {o.apiKey}, "units": {"metric"}},
	}, &payload)
	if err != nil {
		return Weather{}, upstream("openweather", err)
	}
	if len(payload.Weather) == 0 {
		return Weather{}, noResult("no weather data for %q", city)
	}

	name := payload.Name
	if name == "" {
		name = city
	}
	return Weather{
		City:        name,
		Temperature: payload.Main.Temp,
		Condition:   payload.Weather[0].Description,
		Humidity:    payload.Main.Humidity,
		WindSpeed:   payload.Wind.Speed,
	}, nil
}
