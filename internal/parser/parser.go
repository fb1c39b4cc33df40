// Package parser turns the raw string arguments of control commands into
// typed values. It has no dependencies beyond a logger.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/azurexth/LimSim/internal/focus"
	"github.com/azurexth/LimSim/internal/geo"
	"github.com/azurexth/LimSim/internal/util"
)

// ErrMissingArgs is returned when a command carries fewer arguments than it needs.
var ErrMissingArgs = errors.New("missing arguments")

// Service is the parsing surface used by the worker layer.
type Service interface {
	ParseFocus(args []string) (focus.Point, error)
}

// Parser provides pure []string -> value conversion.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

var _ Service = (*Parser)(nil)

// ParseFocus accepts either a single "x,y" argument or two separate
// coordinates.
func (p *Parser) ParseFocus(args []string) (focus.Point, error) {
	clean := cleanArgs(args)
	switch len(clean) {
	case 0:
		return focus.Point{}, fmt.Errorf("focus: %w", ErrMissingArgs)
	case 1:
		x, y, err := geo.XYFromString(clean[0])
		if err != nil {
			return focus.Point{}, fmt.Errorf("focus %q: %w", clean[0], err)
		}
		return focus.Point{X: x, Y: y}, nil
	}

	x, err := parseFloat(clean[0])
	if err != nil {
		return focus.Point{}, fmt.Errorf("focus x: %w", err)
	}
	y, err := parseFloat(clean[1])
	if err != nil {
		return focus.Point{}, fmt.Errorf("focus y: %w", err)
	}
	if len(clean) > 2 {
		p.logger.Debug("Ignoring extra focus arguments", "extra", clean[2:])
	}
	return focus.Point{X: x, Y: y}, nil
}

func cleanArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		a = strings.TrimSpace(util.TrimQuotes(strings.TrimSpace(a)))
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, geo.ErrInvalidCoordinates
	}
	return f, nil
}
