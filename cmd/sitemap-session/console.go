package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/signalsfoundry/sites-fouilles-map/internal/browser"
	"github.com/signalsfoundry/sites-fouilles-map/internal/filters"
	"github.com/signalsfoundry/sites-fouilles-map/internal/mapengine/memory"
	"github.com/signalsfoundry/sites-fouilles-map/internal/session"
	"github.com/signalsfoundry/sites-fouilles-map/model"
)

// ErrUnknownCommand is returned for input the console does not understand.
var ErrUnknownCommand = errors.New("unknown command")

const usage = `commands:
  click <lng> <lat>            click the map
  move <lng> <lat>             move the pointer
  leave                        pointer leaves the map
  idle                         tiles finished loading
  goto <id>                    focus a site as a deep link would
  back | forward               browser history navigation
  measure [on|off]             toggle the distance tool
  filter <key> <v1,v2,...>     select filter values, "filter <key>" clears it
  filter reset                 clear every filter
  visibility <layer> on|off    show or hide a layer
  opacity <layer> <0..1>       set raster or fill opacity
  layers                       list layers in UI order
  state                        print the session state
`

// console turns text commands into session input. It runs on the session
// thread.
type console struct {
	app     *session.App
	engine  *memory.Engine
	history *browser.MemoryHistory
	filters *filters.PropertySource
	out     io.Writer
}

func (c *console) execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprint(c.out, usage)
	case "click", "move":
		coord, err := parseCoordinate(args)
		if err != nil {
			return err
		}
		if cmd == "click" {
			c.engine.ClickAt(coord)
		} else {
			c.engine.MoveMouse(c.engine.Project(coord))
		}
	case "leave":
		c.engine.MouseOut()
	case "idle":
		c.engine.Settle()
	case "goto":
		if len(args) != 1 {
			return fmt.Errorf("goto wants one feature id")
		}
		id, err := model.ParseFeatureID(args[0])
		if err != nil {
			return err
		}
		c.app.Navigator().FocusFeature(ctx, id)
	case "back":
		if !c.history.Back() {
			fmt.Fprintln(c.out, "already at the first entry")
		}
	case "forward":
		if !c.history.Forward() {
			fmt.Fprintln(c.out, "already at the last entry")
		}
	case "measure":
		return c.measure(args)
	case "filter":
		return c.filter(args)
	case "visibility":
		layer, value, err := splitLayerArg(args)
		if err != nil {
			return err
		}
		switch strings.ToLower(value) {
		case "on", "visible":
			return c.app.Layers().SetVisibility(ctx, layer, true)
		case "off", "none":
			return c.app.Layers().SetVisibility(ctx, layer, false)
		default:
			return fmt.Errorf("visibility wants on or off, got %q", value)
		}
	case "opacity":
		layer, value, err := splitLayerArg(args)
		if err != nil {
			return err
		}
		opacity, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("opacity: %w", err)
		}
		return c.app.Layers().SetOpacity(ctx, layer, opacity)
	case "layers":
		for i, l := range c.app.LayerList() {
			fmt.Fprintf(c.out, "%2d. %s (%s)\n", i+1, l.ID, l.Type)
		}
	case "state":
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(c.app.Snapshot())
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
	return nil
}

func (c *console) measure(args []string) error {
	tool := c.app.Measure()
	switch {
	case len(args) == 0:
		tool.Toggle()
	case strings.EqualFold(args[0], "on"):
		tool.Activate()
	case strings.EqualFold(args[0], "off"):
		if len(tool.Points()) > 1 {
			fmt.Fprintf(c.out, "measured %s\n", tool.Label())
		}
		tool.Deactivate()
	default:
		return fmt.Errorf("measure wants on or off, got %q", args[0])
	}
	fmt.Fprintf(c.out, "mode: %s\n", tool.Mode())
	return nil
}

func (c *console) filter(args []string) error {
	switch {
	case len(args) == 0:
		for _, crit := range c.filters.ActiveFilters() {
			fmt.Fprintln(c.out, crit.String())
		}
	case len(args) == 1 && strings.EqualFold(args[0], "reset"):
		c.filters.Reset()
	case len(args) == 1:
		c.filters.Select(args[0])
	default:
		var values []string
		for _, v := range strings.Split(strings.Join(args[1:], " "), ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		c.filters.Select(args[0], values...)
	}
	return nil
}

func parseCoordinate(args []string) (model.Coordinate, error) {
	if len(args) != 2 {
		return model.Coordinate{}, fmt.Errorf("want <lng> <lat>")
	}
	lng, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("latitude: %w", err)
	}
	return model.Coordinate{Lng: lng, Lat: lat}, nil
}

// splitLayerArg reads "<layer id> <value>". Layer ids may contain spaces.
func splitLayerArg(args []string) (layer, value string, err error) {
	if len(args) < 2 {
		return "", "", fmt.Errorf("want <layer> <value>")
	}
	return strings.Join(args[:len(args)-1], " "), args[len(args)-1], nil
}
