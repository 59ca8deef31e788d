// Package examples ships the sample programs offered in the editor.
package examples

import "strings"

const fibonacci = `func fib(n int) int {
	if n < 2 {
		return n
	}
	return fib(n-1) + fib(n-2)
}

fib(10)
`

const towerOfHanoi = `import "fmt"

func hanoi(n int, a, b, c string) {
	if n > 0 {
		hanoi(n-1, a, c, b)
		fmt.Println(a, "->", c)
		hanoi(n-1, b, a, c)
	}
}

hanoi(3, "A", "B", "C")
`

const factorial = `func fact(n int) int {
	if n == 0 {
		return 1
	}
	return n * fact(n-1)
}

fact(5)
`

const slicesExample = `import "fmt"

arr := []int{1, 2, 3, 4, 5}
fmt.Println("arr ==", arr)
fmt.Println("arr[0] ==", arr[0])
fmt.Println("arr[1:] ==", arr[1:])
fmt.Println("arr[:len(arr)-1] ==", arr[:len(arr)-1])
fmt.Println("append(arr, 6) ==", append(arr, 6))

rev := make([]int, 0, len(arr))
for i := len(arr) - 1; i >= 0; i-- {
	rev = append(rev, arr[i])
}
rev
`

// Example is a named sample program.
type Example struct {
	Name string
	Code string
}

var all = []Example{
	{Name: "Fibonacci", Code: fibonacci},
	{Name: "Tower of Hanoi", Code: towerOfHanoi},
	{Name: "Factorial", Code: factorial},
	{Name: "Slices", Code: slicesExample},
}

// All returns the samples in menu order.
func All() []Example {
	return append([]Example(nil), all...)
}

// Names returns the sample names in menu order.
func Names() []string {
	names := make([]string, len(all))
	for i, e := range all {
		names[i] = e.Name
	}
	return names
}

// Get looks a sample up by name, ignoring case and surrounding space.
func Get(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, e := range all {
		if strings.EqualFold(e.Name, name) {
			return e.Code, true
		}
	}
	return "", false
}

// Default is the sample shown when there is nothing else to load.
func Default() string {
	return fibonacci
}
