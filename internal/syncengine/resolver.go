package syncengine

import "lokapos/agent/internal/domain"

// Action is the per-record outcome of conflict resolution.
type Action int

const (
	NoOp Action = iota
	PushLocal
	PullRemote
	CreateRemoteFromLocal
	CreateLocalFromRemote
)

func (a Action) String() string {
	switch a {
	case PushLocal:
		return "push_local"
	case PullRemote:
		return "pull_remote"
	case CreateRemoteFromLocal:
		return "create_remote_from_local"
	case CreateLocalFromRemote:
		return "create_local_from_remote"
	default:
		return "noop"
	}
}

// Resolve decides what to do with one product during reconciliation:
// last-writer-wins on UpdatedAt at whole-record granularity, no field merge.
// Equal timestamps resolve to NoOp; a genuine remote edit made in the same
// instant as a local one is deliberately left alone rather than guessed at.
func Resolve(local, remote *domain.Product) Action {
	switch {
	case local == nil && remote == nil:
		return NoOp
	case local == nil:
		return CreateLocalFromRemote
	case remote == nil:
		return CreateRemoteFromLocal
	case local.UpdatedAt.After(remote.UpdatedAt):
		return PushLocal
	case remote.UpdatedAt.After(local.UpdatedAt):
		return PullRemote
	default:
		return NoOp
	}
}
