package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"channelchat/internal/models"
)

// RoomRepository abstracts room documents and their membership lists.
type RoomRepository interface {
	// Insert stores a new room. The collision return is true when the id is
	// already taken and the caller should generate a fresh one.
	Insert(ctx context.Context, room models.Room) (collision bool, err error)
	Get(ctx context.Context, roomID string) (models.Room, error)
	// AddMember returns true when the membership was created, false when the
	// user was already a member.
	AddMember(ctx context.Context, roomID, username string) (added bool, err error)
	// RemoveMember returns true when a membership row was removed.
	RemoveMember(ctx context.Context, roomID, username string) (removed bool, err error)
	IsMember(ctx context.Context, roomID, username string) (bool, error)
	Members(ctx context.Context, roomID string) ([]string, error)
	MemberCount(ctx context.Context, roomID string) (int, error)
	RoomsForUser(ctx context.Context, username string) ([]models.Room, error)
	RoomsOwnedBy(ctx context.Context, username string) ([]models.Room, error)
	Rename(ctx context.Context, roomID, name string) error
	Delete(ctx context.Context, roomID string) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

func (r *RoomRepo) Insert(ctx context.Context, room models.Room) (bool, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (id, name, created_by, created_at) VALUES ($1, $2, $3, $4)`,
		room.ID, room.Name, room.CreatedBy, room.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true, nil
	}
	return false, err
}

func (r *RoomRepo) Get(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room,
		`SELECT id, name, created_by, created_at FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

func (r *RoomRepo) AddMember(ctx context.Context, roomID, username string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO room_members (room_id, username) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roomID, username)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return false, ErrRoomNotFound
		}
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *RoomRepo) RemoveMember(ctx context.Context, roomID, username string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM room_members WHERE room_id=$1 AND username=$2`, roomID, username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *RoomRepo) IsMember(ctx context.Context, roomID, username string) (bool, error) {
	var member bool
	err := r.db.GetContext(ctx, &member,
		`SELECT EXISTS(SELECT 1 FROM room_members WHERE room_id=$1 AND username=$2)`,
		roomID, username)
	return member, err
}

func (r *RoomRepo) Members(ctx context.Context, roomID string) ([]string, error) {
	var members []string
	err := r.db.SelectContext(ctx, &members,
		`SELECT username FROM room_members WHERE room_id=$1 ORDER BY joined_at`, roomID)
	return members, err
}

func (r *RoomRepo) MemberCount(ctx context.Context, roomID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM room_members WHERE room_id=$1`, roomID)
	return count, err
}

func (r *RoomRepo) RoomsForUser(ctx context.Context, username string) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.SelectContext(ctx, &rooms,
		`SELECT r.id, r.name, r.created_by, r.created_at
         FROM rooms r JOIN room_members m ON m.room_id = r.id
         WHERE m.username=$1 ORDER BY r.created_at`, username)
	return rooms, err
}

func (r *RoomRepo) RoomsOwnedBy(ctx context.Context, username string) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.SelectContext(ctx, &rooms,
		`SELECT id, name, created_by, created_at FROM rooms WHERE created_by=$1`, username)
	return rooms, err
}

func (r *RoomRepo) Rename(ctx context.Context, roomID, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE rooms SET name=$2 WHERE id=$1`, roomID, name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// Delete removes the room. Memberships and messages cascade.
func (r *RoomRepo) Delete(ctx context.Context, roomID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id=$1`, roomID)
	return err
}
