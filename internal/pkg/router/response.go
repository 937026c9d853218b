package router

import "time"

type welcome struct{}

func (welcome) Message() string { return "Welcome to API Timestone" }

type health struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

func (health) Message() string { return "service is healthy" }
