package model

// 用户与认证由外部账号服务负责，这里只保留 JWT 中携带的角色
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)
