//go:build unix

package server

import "syscall"

// sysProcAttr places the child in its own process group so a terminal
// interrupt aimed at the launcher is not delivered to the child directly;
// the shutdown path forwards it deliberately after state preservation.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
