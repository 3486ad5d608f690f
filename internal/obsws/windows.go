package obsws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoWindowCapture means OBS has no input that can capture a window.
var ErrNoWindowCapture = errors.New("obs has no window capture input")

// windowProperties maps OBS input kinds to the property listing windows.
var windowProperties = map[string]string{
	"window_capture":   "window",         // Windows, macOS before 13
	"xcomposite_input": "capture_window", // Linux X11
	"screen_capture":   "window",         // macOS 13+ ScreenCaptureKit
}

// InputInfo is one OBS input.
type InputInfo struct {
	InputName            string `json:"inputName"`
	InputKind            string `json:"inputKind"`
	UnversionedInputKind string `json:"unversionedInputKind"`
}

// PropertyItem is one choice of a list property.
type PropertyItem struct {
	ItemName    string      `json:"itemName"`
	ItemValue   interface{} `json:"itemValue"`
	ItemEnabled bool        `json:"itemEnabled"`
}

// WindowInfo is a window OBS can capture.
type WindowInfo struct {
	ID    string // OBS property value, stable while the window exists
	Title string
}

// GetInputList returns every input OBS knows about.
func (c *Client) GetInputList(ctx context.Context) ([]InputInfo, error) {
	resp, err := c.sendRequest(ctx, "GetInputList", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get inputs: %w", err)
	}
	var data struct {
		Inputs []InputInfo `json:"inputs"`
	}
	if err := json.Unmarshal(resp.ResponseData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse inputs: %w", err)
	}
	return data.Inputs, nil
}

// GetPropertyItems returns the choices of a list property of input.
func (c *Client) GetPropertyItems(ctx context.Context, inputName, property string) ([]PropertyItem, error) {
	resp, err := c.sendRequest(ctx, "GetInputPropertiesListPropertyItems", map[string]interface{}{
		"inputName":    inputName,
		"propertyName": property,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %q items of %q: %w", property, inputName, err)
	}
	var data struct {
		PropertyItems []PropertyItem `json:"propertyItems"`
	}
	if err := json.Unmarshal(resp.ResponseData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse property items: %w", err)
	}
	return data.PropertyItems, nil
}

// ListWindows collects the windows offered by every window-capture input,
// without duplicates, in OBS order.
func (c *Client) ListWindows(ctx context.Context) ([]WindowInfo, error) {
	inputs, err := c.GetInputList(ctx)
	if err != nil {
		return nil, err
	}

	var windows []WindowInfo
	seen := make(map[string]bool)
	found := false
	for _, in := range inputs {
		kind := in.UnversionedInputKind
		if kind == "" {
			kind = in.InputKind
		}
		property, ok := windowProperties[kind]
		if !ok {
			continue
		}
		found = true

		items, err := c.GetPropertyItems(ctx, in.InputName, property)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			id := fmt.Sprint(item.ItemValue)
			if !item.ItemEnabled || id == "" || item.ItemValue == nil || seen[id] {
				continue
			}
			seen[id] = true
			windows = append(windows, WindowInfo{ID: id, Title: item.ItemName})
		}
	}
	if !found {
		return nil, ErrNoWindowCapture
	}
	return windows, nil
}
