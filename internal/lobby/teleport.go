package lobby

import "time"

const DefaultTeleportDelay = 3 * time.Second

// Teleport asks every watcher to move its own player to its team anchor.
type Teleport struct {
	IncludeModerators bool
}

type teleportFired struct {
	gen               uint64
	includeModerators bool
}

func (teleportFired) isLobbyMsg() {}

// teleportScheduler arms one deferred teleport at a time. The timer callback only posts
// back into the lobby inbox; the generation check there drops fires from superseded or
// cancelled schedules.
type teleportScheduler struct {
	delay time.Duration
	post  func(Msg)
	timer *time.Timer
	gen   uint64
}

func (s *teleportScheduler) Schedule(includeModerators bool) {
	s.Cancel()
	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() {
		s.post(teleportFired{gen: gen, includeModerators: includeModerators})
	})
}

func (s *teleportScheduler) Cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// Fired reports whether a fire is from the current schedule, consuming it if so.
func (s *teleportScheduler) Fired(gen uint64) bool {
	if gen != s.gen || s.timer == nil {
		return false
	}
	s.timer = nil
	return true
}

func (s *teleportScheduler) Pending() bool { return s.timer != nil }
