package main

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

const samplingInterval = 10 * time.Millisecond

var rssBytesFunc = rssBytes

type measurement struct {
	Duration  time.Duration
	PeakBytes float64
}

// measurePeakResidentMemory runs fn while sampling RSS and reports the wall
// time of fn and the highest RSS seen, including the baseline.
func measurePeakResidentMemory[T any](fn func() (T, error)) (T, measurement, error) {
	baseline := rssBytesFunc()
	peak := baseline

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(samplingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if current := rssBytesFunc(); current > peak {
					peak = current
				}
			case <-stop:
				return
			}
		}
	}()

	start := time.Now()
	result, err := fn()
	elapsed := time.Since(start)
	close(stop)
	wg.Wait()

	if final := rssBytesFunc(); final > peak {
		peak = final
	}
	return result, measurement{Duration: elapsed, PeakBytes: peak}, err
}

// rssBytes reports the resident set size of this process, or 0 when it
// cannot be determined.
func rssBytes() float64 {
	if runtime.GOOS == "linux" {
		if v, err := procRSS(); err == nil && v > 0 {
			return float64(v)
		}
	}
	v, err := psRSS()
	if err != nil {
		return 0
	}
	return float64(v)
}

func procRSS() (uint64, error) {
	p, err := procfs.Self()
	if err != nil {
		return 0, err
	}
	st, err := p.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(st.ResidentMemory()), nil
}

func psRSS() (uint64, error) {
	out, err := exec.Command("ps", "-o", "rss=", "-p", strconv.Itoa(os.Getpid())).Output()
	if err != nil {
		return 0, err
	}
	return parseKB(string(out))
}

func parseKB(s string) (uint64, error) {
	kb, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return kb * 1024, nil
}
