package message

// Handler is the capability "can process a payload of type T".
type Handler[T any] interface {
	Accept(payload T) error
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc[T any] func(payload T) error

func (f HandlerFunc[T]) Accept(payload T) error {
	return f(payload)
}
