package ffstream

import (
	"bufio"
	"io"
	"os/exec"
	"time"

	"github.com/ixugo/goddd/pkg/queue"
)

// drainStderr 持续读取 ffmpeg 的 stderr，防止管道写满阻塞进程
// 输出进入环形队列供诊断接口查询
func drainStderr(stderr io.Reader, log *queue.CirQueue[string]) {
	scan := bufio.NewScanner(stderr)
	for scan.Scan() {
		log.Push(scan.Text())
	}
}

// waitOrKill 等待进程退出，超时后强杀
func waitOrKill(cmd *exec.Cmd, timeout time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()
	select {
	case <-time.After(timeout):
		if err := cmd.Process.Kill(); err != nil {
			return err
		}
		<-done
	case <-done:
	}
	return nil
}
