package models

import "errors"

var (
	ErrRedisConnection = errors.New("redis connection error")
	ErrRedisGet        = errors.New("redis get error")
	ErrRedisSet        = errors.New("redis set error")
	ErrRedisDelete     = errors.New("redis delete error")
	ErrLockNotAcquired = errors.New("lock not acquired")
)

var (
	ErrValidation       = errors.New("validation error")
	ErrInvalidClass     = errors.New("invalid vehicle class")
	ErrInvalidSpot      = errors.New("assigned spot must be a positive integer")
	ErrInvalidExitTime  = errors.New("exit time is before entry time")
	ErrCapacityExceeded = errors.New("no spots available for this vehicle class")
	ErrSpotTaken        = errors.New("spot already occupied by an active vehicle")
	ErrVehicleNotFound  = errors.New("vehicle not found")
	ErrAlreadySettled   = errors.New("vehicle session is no longer active")
)

var (
	ErrDatabaseConnection = errors.New("database connection error")
	ErrDatabaseQuery      = errors.New("database query error")
	ErrDatabaseInsert     = errors.New("database insert error")
	ErrDatabaseUpdate     = errors.New("database update error")
	ErrDatabaseDelete     = errors.New("database delete error")
)

var (
	ErrPublish = errors.New("event publish error")
)
