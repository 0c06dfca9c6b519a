package xutil

import "os"

// FileExist 文件是否存在
func FileExist(filePath string) bool {
	stat, err := os.Stat(filePath)
	return err == nil && !stat.IsDir()
}

// DirExist 目录是否存在
func DirExist(dirPath string) bool {
	stat, err := os.Stat(dirPath)
	return err == nil && stat.IsDir()
}

// EnsureDir 目录不存在时创建
func EnsureDir(dirPath string) error {
	if DirExist(dirPath) {
		return nil
	}
	return os.MkdirAll(dirPath, 0o755)
}
