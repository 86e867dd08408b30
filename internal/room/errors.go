package room

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is at capacity")
	ErrBanned       = errors.New("user is banned from this room")
	ErrNotMember    = errors.New("user is not a member of this room")
	ErrRoomInactive = errors.New("room is deactivated")
)
