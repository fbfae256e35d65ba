package models

import (
	"net/http"

	"ontime.transit.dev/internal/clock"
)

// ResponseModel is the envelope every JSON endpoint returns.
type ResponseModel struct {
	Code        int    `json:"code"`
	CurrentTime int64  `json:"currentTime"`
	Text        string `json:"text,omitempty"`
	Version     int    `json:"version"`
	Data        any    `json:"data,omitempty"`
}

const responseVersion = 1

// ResponseCurrentTime is the envelope timestamp in epoch milliseconds.
func ResponseCurrentTime(c clock.Clock) int64 {
	if c == nil {
		c = clock.RealClock{}
	}
	return c.Now().UnixMilli()
}

func NewOKResponse(data any, c clock.Clock) ResponseModel {
	return ResponseModel{
		Code:        http.StatusOK,
		CurrentTime: ResponseCurrentTime(c),
		Text:        "OK",
		Version:     responseVersion,
		Data:        data,
	}
}

func NewErrorResponse(code int, text string, c clock.Clock) ResponseModel {
	return ResponseModel{
		Code:        code,
		CurrentTime: ResponseCurrentTime(c),
		Text:        text,
		Version:     responseVersion,
	}
}

// ListData wraps list payloads so clients can tell an empty result from a missing one.
type ListData[T any] struct {
	List []T `json:"list"`
}

func NewList[T any](items []T) ListData[T] {
	if items == nil {
		items = []T{}
	}
	return ListData[T]{List: items}
}
