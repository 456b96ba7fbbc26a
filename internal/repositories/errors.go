package repositories

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")

	// ErrNotMessageSender distinguishes "message exists but you may not touch
	// it" from "no such message".
	ErrNotMessageSender = errors.New("not the message sender")
)
