package models

import (
	"github.com/getzep/entitylink/config"
)

// AppState is a struct that holds the state of the application
// Use cmd.NewAppState to create a new instance
type AppState struct {
	Dispatcher Dispatcher
	Config     *config.Config
}
