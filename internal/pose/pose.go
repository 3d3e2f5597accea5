// internal/pose/pose.go
//
// Presentation pose for the vault scene.
// The browser client tweens its sprites toward these values; the server keeps
// them so every tab sees the same dial/door state after a reload.
//
// Rules:
//   - Each accepted dial entry turns the handle 60° per number (negative for counterclockwise).
//   - reset  → handle 0°, door closed, treasure hidden, input enabled.
//   - reject → "wrong combination" notice; the reset that follows restores the pose.
//   - unlock → door slides open, treasure shown, input disabled until the next reset.

package pose

import (
	"errors"

	"github.com/robalobadob/vault/internal/vault"
)

const (
	DegreesPerNumber = 60
	DoorOpenOffset   = -300
)

// Player-facing notices.
const (
	NoticeSelectNumber = "Please select a number first."
	NoticeIncomplete   = "You need to enter 3 number-direction combinations first."
	NoticeWrong        = "Wrong combination! Try again."
	NoticeUnlocked     = "Congratulations, You Opened the Vault!"
)

// Pose is the target state of every animated element.
type Pose struct {
	HandleRotation  int    `json:"handleRotation"` // degrees, accumulated
	DoorOffset      int    `json:"doorOffset"`     // px along x
	TreasureVisible bool   `json:"treasureVisible"`
	InputEnabled    bool   `json:"inputEnabled"`
	Notice          string `json:"notice,omitempty"`
}

// Initial is the closed-vault pose.
func Initial() Pose {
	return Pose{InputEnabled: true}
}

// Turn applies one accepted dial entry.
func (p *Pose) Turn(e vault.DialEntry) {
	p.HandleRotation += Rotation(e)
}

// Rotation is the handle rotation for a single entry.
func Rotation(e vault.DialEntry) int {
	if e.Direction == vault.CounterClockwise {
		return -DegreesPerNumber * e.Number
	}
	return DegreesPerNumber * e.Number
}

// Apply folds an engine event into the pose.
func (p *Pose) Apply(ev vault.Event) {
	switch ev.Kind {
	case vault.EventReset:
		notice := p.Notice
		*p = Initial()
		// A reject notice survives the reset it triggers.
		if notice == NoticeWrong {
			p.Notice = notice
		}
	case vault.EventReject:
		p.Notice = NoticeWrong
	case vault.EventUnlock:
		p.DoorOffset = DoorOpenOffset
		p.TreasureVisible = true
		p.InputEnabled = false
		p.Notice = NoticeUnlocked
	}
}

// Prompt sets the notice shown for a recoverable input error.
func (p *Pose) Prompt(err error) {
	switch {
	case errors.Is(err, vault.ErrNoNumberSelected):
		p.Notice = NoticeSelectNumber
	case errors.Is(err, vault.ErrIncompleteCombination):
		p.Notice = NoticeIncomplete
	}
}
