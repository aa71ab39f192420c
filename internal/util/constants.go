package util

const (
	StorageNone  = "none"
	StorageLocal = "local"
	StorageMinio = "minio"
)

const (
	RoleTrainee = "trainee"
	RoleGuest   = "guest"
)

// 标识符最小长度
const (
	MinSessionIDLength = 10
	MinUserIDLength    = 5
)

const MimeJSON = "application/json"
