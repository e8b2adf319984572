package repository

import "errors"

var (
	// 房间目录相关错误
	ErrRoomNotFound = errors.New("room not found in directory")
)
