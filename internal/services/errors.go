package services

import "errors"

var (
	ErrMarketNotFound = errors.New("market not found")
	ErrMarketExists   = errors.New("market already exists")
	ErrInvalidParams  = errors.New("invalid parameters")
	ErrInvalidStatus  = errors.New("invalid market status for this operation")
	ErrNotTradable    = errors.New("market is not open for trading")
	ErrForbidden      = errors.New("caller is not allowed to perform this operation")
	ErrBelowMinimum   = errors.New("amount below minimum")
	ErrNothingToClaim = errors.New("nothing to claim")
	ErrAlreadyClaimed = errors.New("position already claimed")
	ErrFeedNotFound   = errors.New("oracle feed not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrLoginReplayed  = errors.New("login message already used")
)
