package events

import "github.com/yourusername/applytrack-api/internal/model"

const AlertCreatedTopic = "alert.created"

// AlertCreated is published after an alert row is stored
type AlertCreated struct {
	Alert model.Alert
}
