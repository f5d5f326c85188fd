package tools

import (
	"context"
	"fmt"
	"time"
)

type CurrentTimeInput struct {
	Timezone string `json:"timezone,omitempty" jsonschema_description:"IANA time zone name, e.g. Europe/Berlin. Defaults to UTC."`
}

var CurrentTimeDefinition = ToolDefinition{
	Name:        "current_time",
	Description: "Return the current date and time, optionally in a given IANA time zone.",
	InputSchema: CurrentTimeInputSchema,
	Function:    CurrentTime,
}

var CurrentTimeInputSchema = GenerateSchema[CurrentTimeInput]()

// clock is replaced in tests.
var clock = time.Now

func CurrentTime(_ context.Context, args map[string]any) (any, error) {
	in, err := DecodeArgs[CurrentTimeInput](args)
	if err != nil {
		return nil, err
	}
	loc := time.UTC
	if in.Timezone != "" {
		loc, err = time.LoadLocation(in.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", in.Timezone)
		}
	}
	now := clock().In(loc)
	return map[string]any{
		"time":     now.Format(time.RFC3339),
		"weekday":  now.Weekday().String(),
		"timezone": loc.String(),
	}, nil
}
