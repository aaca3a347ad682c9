package coordinator

type funcCmd func(c *Coordinator)

func (f funcCmd) apply(c *Coordinator) { f(c) }

// pendingExpiries reads the timer table on the worker goroutine.
func pendingExpiries(c *Coordinator) int {
	reply := make(chan int, 1)
	if err := c.enqueue(funcCmd(func(c *Coordinator) { reply <- len(c.timers) })); err != nil {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-c.done:
		return 0
	}
}
