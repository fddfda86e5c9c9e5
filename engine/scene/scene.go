// Package scene keeps a set of placed primitives, groups them into instanced draw batches for the
// render system, and keeps attached lights in step with their objects.
package scene

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/light"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var (
	// ErrObjectNotFound is returned for an id that is not in the scene.
	ErrObjectNotFound = errors.New("object not found")
	// ErrNoPrimitive is returned when Add is called without a primitive.
	ErrNoPrimitive = errors.New("object has no primitive")
)

const defaultParallelThreshold = 1024

// scene is the implementation of the Scene interface.
type scene struct {
	mu      sync.RWMutex
	name    string
	active  bool
	objects map[uuid.UUID]*object
	// order is insertion order; batches and instances follow it.
	order []uuid.UUID

	computePool       worker.DynamicWorkerPool
	computeWorkers    int
	parallelThreshold int
	logger            common.Logger
}

// Scene is a collection of objects drawn with the render system's materials.
type Scene interface {
	// Name returns the scene name.
	Name() string

	// Active reports whether Submit sends draws.
	Active() bool

	// SetActive sets whether Submit sends draws.
	SetActive(active bool)

	// Add places a primitive in the scene.
	//
	// Parameters:
	//   - primitive: the geometry
	//   - materialID: a material registered with the render system
	//   - options: object options
	//
	// Returns:
	//   - uuid.UUID: the object id
	//   - error: ErrNoPrimitive if primitive is nil
	Add(primitive *renderer.Primitive, materialID uuid.UUID, options ...ObjectOption) (uuid.UUID, error)

	// Remove deletes an object. The primitive is not released.
	Remove(id uuid.UUID) error

	// Count returns the number of objects, enabled or not.
	Count() int

	// Transform returns an object's world transform.
	Transform(id uuid.UUID) (common.Transform, error)

	// SetTransform replaces an object's world transform.
	SetTransform(id uuid.UUID, t common.Transform) error

	// SetEnabled shows or hides an object.
	SetEnabled(id uuid.UUID, enabled bool) error

	// AttachLight attaches a spawned light to an object, replacing any previous one.
	//
	// Parameters:
	//   - id: the object id
	//   - lightID: the light id, or uuid.Nil to detach
	//   - offset: the light position in object space
	//
	// Returns:
	//   - error: ErrObjectNotFound
	AttachLight(id uuid.UUID, lightID uuid.UUID, offset mgl32.Vec3) error

	// Update advances every object's rotation speed by dt seconds.
	Update(dt float32)

	// Batches builds the instance slice and render items for the enabled objects. Objects that
	// share a material, primitive and local transform become one RenderItem with a contiguous
	// instance range.
	//
	// Parameters:
	//   - frustums: when given, objects with a bounding radius are kept only if their bounding
	//     sphere touches at least one frustum
	//
	// Returns:
	//   - []mgl32.Mat4: world matrices, one per drawn object
	//   - map[uuid.UUID][]renderer.RenderItem: render items keyed by material id
	Batches(frustums ...common.Frustum) ([]mgl32.Mat4, map[uuid.UUID][]renderer.RenderItem)

	// Submit sends Batches to the render system. An inactive scene submits an empty set.
	//
	// Parameters:
	//   - rs: the render system
	//   - frustums: optional culling frustums, as for Batches
	//
	// Returns:
	//   - error: from RenderSystem.UpdateInstances
	Submit(rs renderer.RenderSystem, frustums ...common.Frustum) error

	// SyncLights moves every attached light to its object.
	//
	// Parameters:
	//   - ls: the light system that spawned the lights
	//
	// Returns:
	//   - error: joined errors for lights that no longer exist
	SyncLights(ls light.LightSystem) error

	// Close stops the compute pool.
	Close()
}

var _ Scene = &scene{}

// NewScene creates an empty, active scene.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - Scene: the scene
func NewScene(options ...SceneBuilderOption) Scene {
	s := &scene{
		name:              "scene",
		active:            true,
		objects:           make(map[uuid.UUID]*object),
		computeWorkers:    max(runtime.NumCPU()-1, 1),
		parallelThreshold: defaultParallelThreshold,
		logger:            common.NewNopLogger(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)
	return s
}

func (s *scene) Name() string { return s.name }

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Add(primitive *renderer.Primitive, materialID uuid.UUID, options ...ObjectOption) (uuid.UUID, error) {
	if primitive == nil {
		return uuid.Nil, ErrNoPrimitive
	}
	o := &object{
		id:        uuid.New(),
		primitive: primitive,
		material:  materialID,
		transform: common.IdentityTransform(),
		local:     mgl32.Ident4(),
		enabled:   true,
	}
	for _, opt := range options {
		opt(o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[o.id] = o
	s.order = append(s.order, o.id)
	s.logger.Debugf("%s: added %s with material %s", s.name, primitive.Label(), materialID)
	return o.id, nil
}

func (s *scene) Remove(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		return fmt.Errorf("remove %s: %w", id, ErrObjectNotFound)
	}
	delete(s.objects, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *scene) Transform(id uuid.UUID) (common.Transform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[id]
	if !ok {
		return common.Transform{}, fmt.Errorf("transform %s: %w", id, ErrObjectNotFound)
	}
	return o.transform, nil
}

func (s *scene) SetTransform(id uuid.UUID, t common.Transform) error {
	return s.modify(id, func(o *object) { o.transform = t })
}

func (s *scene) SetEnabled(id uuid.UUID, enabled bool) error {
	return s.modify(id, func(o *object) { o.enabled = enabled })
}

func (s *scene) AttachLight(id uuid.UUID, lightID uuid.UUID, offset mgl32.Vec3) error {
	return s.modify(id, func(o *object) {
		o.light = lightID
		o.lightOffset = offset
	})
}

func (s *scene) modify(id uuid.UUID, fn func(o *object)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok {
		return fmt.Errorf("object %s: %w", id, ErrObjectNotFound)
	}
	fn(o)
	return nil
}

func (s *scene) Update(dt float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.objects {
		o.advance(dt)
	}
}

func (s *scene) Batches(frustums ...common.Frustum) ([]mgl32.Mat4, map[uuid.UUID][]renderer.RenderItem) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make(map[batchKey][]*object)
	var keys []batchKey
	count := 0
	for _, id := range s.order {
		o := s.objects[id]
		if !o.enabled || !visible(o, frustums) {
			continue
		}
		k := o.key()
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], o)
		count++
	}

	ordered := make([]*object, 0, count)
	items := make(map[uuid.UUID][]renderer.RenderItem)
	for _, k := range keys {
		members := groups[k]
		items[k.material] = append(items[k.material], renderer.RenderItem{
			Primitive:      k.primitive,
			LocalTransform: k.local,
			Instances:      renderer.InstanceRange{Start: uint32(len(ordered)), Count: uint32(len(members))},
		})
		ordered = append(ordered, members...)
	}
	return s.worldMatrices(ordered), items
}

func visible(o *object, frustums []common.Frustum) bool {
	if len(frustums) == 0 || o.radius == 0 {
		return true
	}
	r := o.boundingRadius()
	for _, f := range frustums {
		if f.IntersectsSphere(o.transform.Position, r) {
			return true
		}
	}
	return false
}

// worldMatrices fills one matrix per object, splitting large sets across the compute pool.
func (s *scene) worldMatrices(objects []*object) []mgl32.Mat4 {
	out := make([]mgl32.Mat4, len(objects))
	if len(objects) < s.parallelThreshold || s.computeWorkers < 2 {
		for i, o := range objects {
			out[i] = o.transform.Matrix()
		}
		return out
	}

	chunk := (len(objects) + s.computeWorkers - 1) / s.computeWorkers
	// pool.Wait() only returns once workers idle out, so each call joins on its own WaitGroup.
	var wg sync.WaitGroup
	for id, start := 0, 0; start < len(objects); id, start = id+1, start+chunk {
		end := min(start+chunk, len(objects))
		wg.Add(1)
		s.computePool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for i := start; i < end; i++ {
					out[i] = objects[i].transform.Matrix()
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return out
}

func (s *scene) Submit(rs renderer.RenderSystem, frustums ...common.Frustum) error {
	if !s.Active() {
		return rs.UpdateInstances(nil, nil)
	}
	instances, items := s.Batches(frustums...)
	if err := rs.UpdateInstances(instances, items); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}

func (s *scene) SyncLights(ls light.LightSystem) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var errs []error
	for _, id := range s.order {
		o := s.objects[id]
		if o.light == uuid.Nil {
			continue
		}
		if err := ls.SetViewDirection(o.light, o.lightView()); err != nil {
			errs = append(errs, fmt.Errorf("object %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *scene) Close() {
	s.computePool.Stop()
}
