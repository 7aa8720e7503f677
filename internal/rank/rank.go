// Package rank implements the privilege model: four total-ordered levels,
// their mapping to the three flags stored on an account, and the policy
// checks every cross-account operation runs through. Lower rank means more
// power; rank 0 (superuser) outranks everyone.
package rank

import (
	"fmt"

	"github.com/okarpov/stash/internal/database/models"
)

const (
	Superuser   = 0
	SeniorAdmin = 1
	Admin       = 2
	User        = 3
)

// Level names as they appear on the wire.
const (
	LevelSuperuser   = "superuser"
	LevelSeniorAdmin = "senior_admin"
	LevelAdmin       = "admin"
	LevelUser        = "user"
)

// ErrUnknownLevel is returned for any level name outside the four known ones.
type ErrUnknownLevel struct {
	Level string
}

func (e *ErrUnknownLevel) Error() string {
	return fmt.Sprintf("unknown level: %s", e.Level)
}

var levelRanks = map[string]int{
	LevelUser:        User,
	LevelAdmin:       Admin,
	LevelSeniorAdmin: SeniorAdmin,
	LevelSuperuser:   Superuser,
}

var rankLevels = map[int]string{
	User:        LevelUser,
	Admin:       LevelAdmin,
	SeniorAdmin: LevelSeniorAdmin,
	Superuser:   LevelSuperuser,
}

// LevelToRank converts a level name to its rank.
func LevelToRank(level string) (int, error) {
	r, ok := levelRanks[level]
	if !ok {
		return 0, &ErrUnknownLevel{Level: level}
	}
	return r, nil
}

// RankToLevel converts a rank back to its level name.
func RankToLevel(rank int) (string, error) {
	l, ok := rankLevels[rank]
	if !ok {
		return "", &ErrUnknownLevel{Level: fmt.Sprintf("rank %d", rank)}
	}
	return l, nil
}

// ValidLevel reports whether the given name is one of the four levels.
func ValidLevel(level string) bool {
	_, ok := levelRanks[level]
	return ok
}

// RankOf derives an account's rank from its flag combination.
func RankOf(a *models.Account) int {
	if a.IsSuperuser {
		return Superuser
	}
	if a.IsAdmin && a.IsStaff {
		return SeniorAdmin
	}
	if a.IsAdmin {
		return Admin
	}
	return User
}

// LevelOf derives an account's level name from its flag combination.
func LevelOf(a *models.Account) string {
	return rankLevels[RankOf(a)]
}

// ApplyLevel sets the account's three flags to the combination encoding
// the given level. It mutates the struct only; persisting is the caller's
// concern, and all three flags must be written together.
func ApplyLevel(a *models.Account, level string) error {
	switch level {
	case LevelUser:
		a.IsAdmin = false
		a.IsStaff = false
		a.IsSuperuser = false
	case LevelAdmin:
		a.IsAdmin = true
		a.IsStaff = false
		a.IsSuperuser = false
	case LevelSeniorAdmin:
		a.IsAdmin = true
		a.IsStaff = true
		a.IsSuperuser = false
	case LevelSuperuser:
		a.IsAdmin = true
		a.IsStaff = true
		a.IsSuperuser = true
	default:
		return &ErrUnknownLevel{Level: level}
	}
	return nil
}

// CanManage reports whether actor may act on target's account. Superusers
// manage everyone; otherwise the actor must strictly outrank the target.
// Equal rank never grants, which also blocks self-management here.
func CanManage(actor, target *models.Account) bool {
	actorRank := RankOf(actor)
	if actorRank == Superuser {
		return true
	}
	return actorRank < RankOf(target)
}

// CanManageFiles reports whether actor may act on files owned by owner.
// Ownership always grants, regardless of rank.
func CanManageFiles(actor, owner *models.Account) bool {
	if actor.ID == owner.ID {
		return true
	}
	return CanManage(actor, owner)
}

// CanChangeLevel reports whether actor may move target to newLevel.
// Superusers may make any non-trivial change. Senior admins may only
// shuffle targets between admin and user: both the current and the
// requested rank must be strictly weaker than senior_admin, and the
// change must not be a no-op. Admins and users may change nobody.
func CanChangeLevel(actor, target *models.Account, newLevel string) bool {
	newRank, err := LevelToRank(newLevel)
	if err != nil {
		return false
	}

	actorRank := RankOf(actor)
	targetRank := RankOf(target)

	if actorRank == Superuser {
		return targetRank != newRank
	}

	if actorRank == SeniorAdmin {
		return min(targetRank, newRank) > SeniorAdmin && targetRank != newRank
	}

	return false
}
