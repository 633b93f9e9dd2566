// Package device talks to the kiosk hardware: the shredder/relay controller
// and the RFID card reader.
package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/smartvendoplus/smartvendo/kiosk/logger"
)

// Commands understood by the bin controller firmware.
const (
	CmdStartShredding       = "START:SHREDDING"
	CmdStopShredding        = "STOP:SHREDDING"
	CmdRelayOn              = "RELAYON"
	CmdRelayOff             = "RELAYOFF"
	CmdClearAllMaintenance  = "CLEARALLMAINTENANCE"
	cmdUpdateRewardPrefix   = "UPDATE_REWARD:"
	commanderRequestTimeout = 10 * time.Second
)

var ErrUnknownCommand = fmt.Errorf("unknown device command")

// Commander forwards validated commands to the bin controller over HTTP.
type Commander struct {
	controllerURL string
	client        *http.Client
}

func NewCommander(controllerURL string) *Commander {
	return &Commander{
		controllerURL: controllerURL,
		client: &http.Client{
			Timeout: commanderRequestTimeout,
		},
	}
}

// Enabled reports whether a controller is configured. Kiosks can run without
// hardware attached, e.g. during development, in which case commands are
// logged and dropped.
func (c *Commander) Enabled() bool {
	return c.controllerURL != ""
}

// Send validates and forwards one command. Unknown commands are rejected
// before anything touches the controller.
func (c *Commander) Send(ctx context.Context, command string) error {
	if !validCommand(command) {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}

	if !c.Enabled() {
		logger.LogDevice("No controller configured, dropping command", slog.String("command", command))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.controllerURL,
		strings.NewReader(command))
	if err != nil {
		return fmt.Errorf("failed to create controller request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach controller: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("controller rejected %s: %s (%s)", command, resp.Status, strings.TrimSpace(string(body)))
	}

	logger.LogDevice("Sent command to controller", slog.String("command", command))
	return nil
}

// SendAsync fires a command without holding up the caller. Deposit flows use
// this so the shredder starts while the HTTP response is already on its way.
func (c *Commander) SendAsync(command string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commanderRequestTimeout)
		defer cancel()
		if err := c.Send(ctx, command); err != nil {
			logger.LogError("Device command failed", err, slog.String("command", command))
		}
	}()
}

// UpdateRewardCommand builds the controller notification for a changed
// reward stock, e.g. "UPDATE_REWARD:pencil:49".
func UpdateRewardCommand(rewardName string, stock int64) string {
	return fmt.Sprintf("%s%s:%d", cmdUpdateRewardPrefix, rewardName, stock)
}

func validCommand(command string) bool {
	switch command {
	case CmdStartShredding, CmdStopShredding, CmdRelayOn, CmdRelayOff, CmdClearAllMaintenance:
		return true
	}
	return strings.HasPrefix(command, cmdUpdateRewardPrefix) && len(command) > len(cmdUpdateRewardPrefix)
}
