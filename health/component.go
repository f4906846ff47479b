package health

// Component is a handle for reporting the status of one named component.
type Component struct {
	registry *Registry
	name     string
}

// Component returns a handle for the named component. Nothing is recorded
// until one of the handle's methods is called.
func (r *Registry) Component(name string) *Component {
	return &Component{registry: r, name: name}
}

// Name returns the component name.
func (c *Component) Name() string {
	return c.name
}

// Healthy records a healthy status.
func (c *Component) Healthy(message string) error {
	return c.registry.SetStatus(c.name, LevelHealthy, message, nil)
}

// Warning records a warning status.
func (c *Component) Warning(message string) error {
	return c.registry.SetStatus(c.name, LevelWarning, message, nil)
}

// Error records an error status.
func (c *Component) Error(message string, err error) error {
	return c.registry.SetStatus(c.name, LevelError, message, err)
}

// Loading records a loading status.
func (c *Component) Loading(message string) error {
	return c.registry.SetStatus(c.name, LevelLoading, message, nil)
}

// Unknown records an unknown status.
func (c *Component) Unknown(message string) error {
	return c.registry.SetStatus(c.name, LevelUnknown, message, nil)
}
