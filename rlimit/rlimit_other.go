//go:build !freebsd

package rlimit

import (
	"fmt"
	"log"
	"syscall"
)

// SetRLimit raises the open-files limit to required if the current soft
// limit is lower, needed because the UTXO set's 65,536-shard leveldb
// layout can hold that many file descriptors open at once.
func SetRLimit(required uint64) error {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return err
	}
	if rLimit.Cur < required {
		log.Printf("raising open files rlimit from %d to %d", rLimit.Cur, required)
		rLimit.Cur = required
		if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
			return err
		}
		if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
			return err
		}
		if rLimit.Cur < required {
			return fmt.Errorf("rlimit: could not raise open files limit to %d", required)
		}
	}
	return nil
}
