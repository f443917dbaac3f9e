package queue

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// AnnounceTick evaluates and, if due, performs the head caller's position
// and/or periodic announcement (spec §4.1.3). It is driven by the queue
// application's RECHECK=1s loop (spec §5). Returns true if a DTMF digit
// caused an exit-with-key transfer, false otherwise.
func AnnounceTick(ctx context.Context, q *Queue, c *Caller, estimatedHoldSeconds int) (exited bool) {
	cfg := q.Config()
	now := time.Now()

	if cfg.AnnounceFrequency > 0 {
		positionChanged := c.LastPositionValue != c.Position
		elapsed := now.Sub(c.LastPositionAnnounce) >= time.Duration(cfg.AnnounceFrequency)*time.Second
		fifteen := now.Sub(c.LastPositionAnnounce) >= 15*time.Second
		if elapsed && (positionChanged || fifteen) {
			if exited = doPositionAnnounce(ctx, q, c, cfg, estimatedHoldSeconds); exited {
				return true
			}
			c.LastPositionAnnounce = now
			c.LastPositionValue = c.Position
		}
	}

	if cfg.PeriodicFrequency > 0 && now.Sub(c.LastPeriodicAnnounce) >= time.Duration(cfg.PeriodicFrequency)*time.Second {
		if exited = doPeriodicAnnounce(ctx, q, c, cfg); exited {
			return true
		}
		c.LastPeriodicAnnounce = now
	}
	return false
}

func doPositionAnnounce(ctx context.Context, q *Queue, c *Caller, cfg Config, estimatedHoldSeconds int) bool {
	ch := c.Channel
	_ = ch.StopMOH(ctx)
	defer ch.StartMOH(ctx, c.MusicClass)

	if c.Position == 1 {
		if _, exited := playOrExit(ctx, q, c, "queue-youarenext"); exited {
			return true
		}
	} else {
		if _, exited := playOrExit(ctx, q, c, "queue-thereare"); exited {
			return true
		}
		if _, exited := sayNumberOrExit(ctx, q, c, c.Position); exited {
			return true
		}
		if _, exited := playOrExit(ctx, q, c, "queue-callswaiting"); exited {
			return true
		}
	}

	if cfg.AnnounceHoldTime != AnnounceHoldTimeNever && estimatedHoldSeconds >= 60 {
		firstTime := !c.HoldTimeAnnounced
		if cfg.AnnounceHoldTime == AnnounceHoldTimeAlways || firstTime {
			if announceHoldTime(ctx, q, c, estimatedHoldSeconds, cfg.RoundingSeconds) {
				return true
			}
			c.HoldTimeAnnounced = true
		}
	}

	if _, exited := playOrExit(ctx, q, c, "queue-thankyou"); exited {
		return true
	}
	return false
}

func announceHoldTime(ctx context.Context, q *Queue, c *Caller, seconds, rounding int) bool {
	minutes := seconds / 60
	if rounding > 0 {
		remainder := seconds % 60
		rounded := (remainder / rounding) * rounding
		seconds = minutes*60 + rounded
	}

	if _, exited := playOrExit(ctx, q, c, "queue-holdtime"); exited {
		return true
	}
	if minutes < 2 {
		if _, exited := playOrExit(ctx, q, c, "queue-less-than-2"); exited {
			return true
		}
	} else if _, exited := sayNumberOrExit(ctx, q, c, minutes); exited {
		return true
	}
	if _, exited := playOrExit(ctx, q, c, "queue-minutes"); exited {
		return true
	}

	secRemainder := seconds % 60
	if rounding > 0 && secRemainder > 0 {
		if _, exited := sayNumberOrExit(ctx, q, c, secRemainder); exited {
			return true
		}
		if _, exited := playOrExit(ctx, q, c, "queue-seconds"); exited {
			return true
		}
	}
	return false
}

func doPeriodicAnnounce(ctx context.Context, q *Queue, c *Caller, cfg Config) bool {
	ch := c.Channel
	_ = ch.StopMOH(ctx)
	defer ch.StartMOH(ctx, c.MusicClass)
	_, exited := playOrExit(ctx, q, c, cfg.PeriodicAnnounceFile)
	return exited
}

// playOrExit plays name, appending any DTMF digit pressed to the
// caller's digit buffer and checking for an exit-context match
// (spec §4.1.3's DTMF-during-announcement rule).
func playOrExit(ctx context.Context, q *Queue, c *Caller, name string) (digit string, exited bool) {
	d, err := c.Channel.PlayFile(ctx, name)
	if err != nil || d == "" {
		return "", false
	}
	return d, appendDigitAndCheckExit(ctx, q, c, d)
}

func sayNumberOrExit(ctx context.Context, q *Queue, c *Caller, n int) (digit string, exited bool) {
	// SayNumber has no distinct channel primitive in pbx.Channel; modeled
	// as a PlayFile of a synthesized file name, matching how the digit-
	// exit check must apply uniformly to every announcement segment.
	return playOrExit(ctx, q, c, "digits/"+strconv.Itoa(n))
}

func appendDigitAndCheckExit(ctx context.Context, q *Queue, c *Caller, digit string) bool {
	c.DigitBuffer += digit
	if c.ExitContext == "" {
		return false
	}
	if strings.HasPrefix(c.ExitContext, "!") {
		return false
	}
	// A real dial-plan lookup of "does extension c.DigitBuffer exist in
	// c.ExitContext" is an external collaborator (spec §1); here we defer
	// to the channel's Goto, which itself resolves the extension and
	// returns an error if no match exists, matching the exit condition's
	// "ExitWithKey" semantics (spec §4.1.8).
	if err := c.Channel.Goto(ctx, c.ExitContext, c.DigitBuffer, 1); err != nil {
		return false
	}
	return true
}
