//go:build !unix

package server

import "syscall"

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
