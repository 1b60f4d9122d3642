package commands

import (
	"fmt"
	"time"
)

// waitingNavigator lets a command stay alive until the delayed navigation fires
type waitingNavigator struct {
	routes chan string
}

func newWaitingNavigator() *waitingNavigator {
	return &waitingNavigator{routes: make(chan string, 1)}
}

func (n *waitingNavigator) NavigateTo(route string) {
	select {
	case n.routes <- route:
	default:
	}
}

func (n *waitingNavigator) wait(timeout time.Duration) error {
	select {
	case route := <-n.routes:
		fmt.Printf("→ %s\n", route)
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("navigation did not happen within %s", timeout)
	}
}
