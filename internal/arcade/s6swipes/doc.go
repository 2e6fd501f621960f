// Package s6swipes executes planned swipe paths against a pointer input
// device.
//
// The Dispatcher is a pure consumer: it expands each path into an ordered
// press/move/release step sequence and plays it through an Injector, one
// path fully completing before the next begins. It never touches tracker or
// strategy state; an injector error aborts the batch and is surfaced to the
// caller.
//
// Three injectors ship with the package: MockInjector for tests,
// SerialBridge for a pointer-HID bridge device on a serial line, and
// ADBInjector for Android devices driven through adb.
package s6swipes
