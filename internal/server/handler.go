package server

import (
	"context"
	"errors"

	"github.com/nerrad567/motion-bridge/internal/device"
	"github.com/nerrad567/motion-bridge/internal/gesture"
	"github.com/nerrad567/motion-bridge/internal/protocol"
)

// Handle dispatches one request. ok is false when no reply must be sent;
// exit is true when the serve loop should stop after replying.
func (s *Server) Handle(ctx context.Context, packet []byte) (reply []byte, ok bool, exit bool) {
	s.requests.Add(1)

	cmd, err := protocol.Parse(packet)
	if err != nil {
		s.unknown.Add(1)
		s.logger.Warn("unknown command, check syntax", "packet", string(packet))
		return nil, false, false
	}

	switch cmd.Kind {
	case protocol.Handshake:
		s.notifier.Push(MessageConnected)
		return protocol.Shake(s.registry.Count()), true, false

	case protocol.CaptureToggle:
		reply, ok = s.handleCapture(ctx, cmd)
		return reply, ok, false

	case protocol.StateQuery:
		reply, ok = s.handleState(cmd)
		return reply, ok, false

	case protocol.RumbleSet:
		reply, ok = s.handleRumble(cmd)
		return reply, ok, false

	case protocol.Disconnect:
		s.notifier.Push(MessageDisconnected)
		return cmd.Echo(), true, s.RespondToExit()
	}

	return nil, false, false
}

// lookup resolves the device addressed by cmd. When ok is false, reply (if
// non-nil) is the error reply to send.
func (s *Server) lookup(cmd protocol.Command) (d *device.Device, reply []byte, ok bool) {
	id, err := cmd.DeviceIndex()
	if err != nil {
		s.malformed(cmd, err)
		return nil, nil, false
	}

	d, err = s.registry.Get(id)
	if err != nil {
		s.failed.Add(1)
		s.logger.Warn("request for invalid device", "command", cmd.Word, "index", cmd.IndexArg(), "devices", s.registry.Count())
		return nil, protocol.Error(protocol.CodeInvalidDevice, cmd.IndexArg()), false
	}
	return d, nil, true
}

func (s *Server) handleCapture(ctx context.Context, cmd protocol.Command) ([]byte, bool) {
	d, reply, ok := s.lookup(cmd)
	if !ok {
		return reply, reply != nil
	}

	on, err := cmd.Toggle()
	if err != nil {
		s.malformed(cmd, err)
		return nil, false
	}

	if on {
		if err := s.registry.StartCapture(d.ID, s.now()); err != nil {
			return s.deviceError(cmd, err)
		}
		s.logger.Debug("started capturing", "device", d.ID)
		return protocol.CaptureStarted(), true
	}

	candidates, err := cmd.Candidates()
	if err != nil {
		s.malformed(cmd, err)
		return nil, false
	}

	capture, err := s.registry.StopCapture(d.ID, s.now())
	if err != nil {
		return s.deviceError(cmd, err)
	}

	result := gesture.Result{
		Capture:    capture,
		Candidates: candidates,
		Matched:    s.matcher.Match(capture.Samples, candidates, capture.Duration()),
	}
	s.logger.Debug("capture matched",
		"device", d.ID,
		"samples", len(capture.Samples),
		"duration", capture.Duration(),
		"candidates", candidates.String(),
		"matched", result.Matched,
		"recognised", result.IsMatch(),
	)
	s.publish(ctx, result)

	return protocol.CaptureResult(result.Matched), true
}

// publish hands a result to the recorder and event publishers. Failures
// are logged only.
func (s *Server) publish(ctx context.Context, result gesture.Result) {
	if s.recorder != nil {
		if err := s.recorder.RecordCapture(ctx, result); err != nil {
			s.logger.Warn("recording capture failed", "device", result.Capture.DeviceID, "error", err)
		}
	}
	if s.events != nil {
		if err := s.events.PublishCapture(result); err != nil {
			s.logger.Warn("publishing capture event failed", "device", result.Capture.DeviceID, "error", err)
		}
	}
}

func (s *Server) handleState(cmd protocol.Command) ([]byte, bool) {
	d, reply, ok := s.lookup(cmd)
	if !ok {
		return reply, reply != nil
	}

	st, err := d.Controller.State()
	if err != nil {
		return s.hardwareFailure(cmd, d, err)
	}
	return protocol.State(st), true
}

func (s *Server) handleRumble(cmd protocol.Command) ([]byte, bool) {
	d, reply, ok := s.lookup(cmd)
	if !ok {
		return reply, reply != nil
	}

	on, err := cmd.Toggle()
	if err != nil {
		s.malformed(cmd, err)
		return nil, false
	}

	if err := d.Controller.SetRumble(on); err != nil {
		return s.hardwareFailure(cmd, d, err)
	}
	return protocol.Rumble(), true
}

func (s *Server) malformed(cmd protocol.Command, err error) {
	s.unknown.Add(1)
	s.logger.Warn("malformed request, check syntax", "packet", string(cmd.Raw), "error", err)
}

func (s *Server) hardwareFailure(cmd protocol.Command, d *device.Device, err error) ([]byte, bool) {
	s.failed.Add(1)
	s.logger.Error("controller call failed", "command", cmd.Word, "device", d.ID, "controller", d.Name, "error", err)
	return protocol.Error(protocol.CodeHardwareFailure, cmd.Word), true
}

func (s *Server) deviceError(cmd protocol.Command, err error) ([]byte, bool) {
	s.failed.Add(1)
	if errors.Is(err, device.ErrInvalidDevice) {
		return protocol.Error(protocol.CodeInvalidDevice, cmd.IndexArg()), true
	}
	s.logger.Error("registry call failed", "command", cmd.Word, "error", err)
	return protocol.Error(protocol.CodeHardwareFailure, cmd.Word), true
}
