// Package windowlist enumerates the windows a user can pick as a recording
// source. Picking one does not make it recordable: window capture has no
// backend yet.
package windowlist

import (
	"context"
	"fmt"

	"github.com/tiroq/camrec/internal/config"
	"github.com/tiroq/camrec/internal/diaglog"
	"github.com/tiroq/camrec/internal/obsws"
)

// Window is one selectable window.
type Window struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Enumerator lists selectable windows.
type Enumerator interface {
	Windows(ctx context.Context) ([]Window, error)
}

// Placeholder returns a fixed list.
type Placeholder struct{}

func (Placeholder) Windows(context.Context) ([]Window, error) {
	return []Window{
		{ID: "window-1", Title: "Window 1"},
		{ID: "window-2", Title: "Window 2"},
	}, nil
}

// OBS lists the windows seen by the window-capture inputs of a running OBS.
// Each call opens and closes its own connection.
type OBS struct {
	URL      string
	Password string
	Logger   *diaglog.Logger
}

func (o *OBS) Windows(ctx context.Context) ([]Window, error) {
	client := obsws.NewClient(o.URL, o.Password)
	client.SetLogger(o.Logger)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("obs window list: %w", err)
	}
	defer client.Close()

	infos, err := client.ListWindows(ctx)
	if err != nil {
		return nil, fmt.Errorf("obs window list: %w", err)
	}
	windows := make([]Window, 0, len(infos))
	for _, info := range infos {
		windows = append(windows, Window{ID: info.ID, Title: info.Title})
	}
	return windows, nil
}

// New returns the enumerator selected by cfg.WindowSource.
func New(cfg *config.Config, logger *diaglog.Logger) Enumerator {
	if cfg.WindowSource == config.WindowSourceOBS {
		return &OBS{URL: cfg.OBSURL, Password: cfg.OBSPassword, Logger: logger}
	}
	return Placeholder{}
}
