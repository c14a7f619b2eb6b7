// Package app wires HTTP handlers to the scheduling engine, booking
// admission, and storage.
package app

import (
	"log/slog"

	"meetsched-service/internal/gcal"
	"meetsched-service/internal/scheduling"
	"meetsched-service/internal/storage"
)

type App struct {
	Store    *storage.Store
	Engine   *scheduling.Engine
	Booker   *scheduling.Booker
	Calendar *gcal.Client
	Logger   *slog.Logger
}
