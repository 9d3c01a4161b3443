//go:build !tinygo && cgo

package glrun

import (
	"fmt"
	"image"
	"image/draw"
	"time"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/v4.6-core/glgl"

	"github.com/graphgl/graphgl"
)

// Validate compiles the program on a hidden GPU context and returns the
// driver's diagnostics attributed to graph nodes. A nil slice means the
// program compiled clean.
func Validate(res *graphgl.Result) ([]graphgl.Diagnostic, error) {
	if res.Failed() {
		return res.Errors, nil
	}
	_, term, err := startGLFW(64, 64, true)
	if err != nil {
		return nil, err
	}
	defer term()
	prog, err := compile(res)
	if err != nil {
		diags := Attribute(res, err.Error())
		if len(diags) == 0 {
			diags = []graphgl.Diagnostic{{
				Node: graphgl.NoNode, Code: graphgl.CodeRuntimeCompile,
				Severity: graphgl.SeverityError, Msg: err.Error(),
			}}
		}
		return diags, nil
	}
	prog.Delete()
	return nil, nil
}

// Show opens a window and runs the program until the window closes. The
// well-known uniforms (time, frame, resolution, mouse) update every frame;
// literal uniforms are set once; texture-backed uniforms upload their
// image; feedback uniforms sample the previous frame through a ping-pong
// target pair.
func Show(res *graphgl.Result, cfg Config) error {
	if res.Failed() {
		return res.Errors[0]
	}
	cfg.defaults()
	window, term, err := startGLFW(cfg.Width, cfg.Height, false)
	if err != nil {
		return err
	}
	defer term()
	window.SetTitle(cfg.Title)

	prog, err := compile(res)
	if err != nil {
		if diags := Attribute(res, err.Error()); len(diags) > 0 {
			return diags[0]
		}
		return err
	}
	defer prog.Delete()
	prog.Bind()

	vao, vbo := makeQuad(prog)
	defer gl.DeleteVertexArrays(1, &vao)
	defer gl.DeleteBuffers(1, &vbo)

	texUnit := int32(0)
	var feedback *pingPong
	for _, u := range res.Uniforms {
		switch u.Binding {
		case graphgl.BindingNone:
			if err := setLiteral(prog, u); err != nil {
				return err
			}
		case graphgl.BindingTexture:
			img, ok := u.Value.(image.Image)
			if !ok {
				return fmt.Errorf("uniform %s has no image value", u.Name)
			}
			if err := bindImage(prog, u.Name, img, texUnit); err != nil {
				return err
			}
			texUnit++
		case graphgl.BindingFeedback:
			if feedback == nil {
				feedback, err = newPingPong(cfg.Width, cfg.Height)
				if err != nil {
					return err
				}
				defer feedback.delete()
			}
			gl.ActiveTexture(gl.TEXTURE0 + uint32(texUnit))
			gl.BindTexture(gl.TEXTURE_2D, feedback.read())
			setSampler(prog, u.Name, texUnit)
			feedback.unit = texUnit
			texUnit++
		case graphgl.BindingMicrophone, graphgl.BindingMIDI:
			// No capture backends wired; these hold their zero value.
			setFloat(prog, u.Name, 0)
		}
	}

	timeLoc := location(prog, "time")
	frameLoc := location(prog, "frame")
	resLoc := location(prog, "resolution")
	mouseLoc := location(prog, "mouse")

	start := time.Now()
	var frame int32
	for !window.ShouldClose() {
		if timeLoc >= 0 {
			gl.Uniform1f(timeLoc, float32(time.Since(start).Seconds()))
		}
		if frameLoc >= 0 {
			gl.Uniform1i(frameLoc, frame)
		}
		if resLoc >= 0 {
			gl.Uniform2f(resLoc, float32(cfg.Width), float32(cfg.Height))
		}
		if mouseLoc >= 0 {
			mx, my := window.GetCursorPos()
			gl.Uniform2f(mouseLoc, float32(mx), float32(cfg.Height)-float32(my))
		}

		if feedback != nil {
			gl.BindFramebuffer(gl.FRAMEBUFFER, feedback.writeFBO())
			gl.ActiveTexture(gl.TEXTURE0 + uint32(feedback.unit))
			gl.BindTexture(gl.TEXTURE_2D, feedback.read())
		}
		gl.Clear(gl.COLOR_BUFFER_BIT)
		gl.DrawArrays(gl.TRIANGLES, 0, 6)
		if feedback != nil {
			// Mirror the freshly written target to the screen, then swap.
			gl.BindFramebuffer(gl.READ_FRAMEBUFFER, feedback.writeFBO())
			gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
			gl.BlitFramebuffer(0, 0, int32(cfg.Width), int32(cfg.Height),
				0, 0, int32(cfg.Width), int32(cfg.Height),
				gl.COLOR_BUFFER_BIT, gl.NEAREST)
			gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
			feedback.swap()
		}
		frame++
		window.SwapBuffers()
		glfw.PollEvents()
		if err := glgl.Err(); err != nil {
			return err
		}
	}
	return nil
}

func compile(res *graphgl.Result) (glgl.Program, error) {
	return glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   res.VertexSource + "\x00",
		Fragment: res.FragmentSource + "\x00",
	})
}

func startGLFW(width, height int, hidden bool) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 3)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	if hidden {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}
	window, err = glfw.CreateWindow(width, height, "graphgl", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("create GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("initialize OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}

// makeQuad uploads a fullscreen two-triangle quad bound to aPos.
func makeQuad(prog glgl.Program) (vao, vbo uint32) {
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	vertices := []float32{
		-1.0, -1.0,
		1.0, -1.0,
		-1.0, 1.0,
		-1.0, 1.0,
		1.0, -1.0,
		1.0, 1.0,
	}
	gl.BufferData(gl.ARRAY_BUFFER, 4*len(vertices), gl.Ptr(vertices), gl.STATIC_DRAW)
	posAttrib, err := prog.AttribLocation("aPos\x00")
	if err == nil {
		gl.EnableVertexAttribArray(posAttrib)
		gl.VertexAttribPointer(posAttrib, 2, gl.FLOAT, false, 0, gl.PtrOffset(0))
	}
	return vao, vbo
}

// location looks a uniform up, returning -1 when the driver optimized it
// out of the linked program.
func location(prog glgl.Program, name string) int32 {
	loc, err := prog.UniformLocation(name + "\x00")
	if err != nil {
		return -1
	}
	return loc
}

func setFloat(prog glgl.Program, name string, v float32) {
	if loc := location(prog, name); loc >= 0 {
		gl.Uniform1f(loc, v)
	}
}

func setSampler(prog glgl.Program, name string, unit int32) {
	if loc := location(prog, name); loc >= 0 {
		gl.Uniform1i(loc, unit)
	}
}

// setLiteral pushes a literal-valued uniform. Unused uniforms may be
// linked out; that is not an error.
func setLiteral(prog glgl.Program, u graphgl.Uniform) error {
	loc := location(prog, u.Name)
	if loc < 0 {
		return nil
	}
	switch v := u.Value.(type) {
	case float32:
		gl.Uniform1f(loc, v)
	case float64:
		gl.Uniform1f(loc, float32(v))
	case int:
		gl.Uniform1i(loc, int32(v))
	case ms2.Vec:
		gl.Uniform2f(loc, v.X, v.Y)
	case ms3.Vec:
		gl.Uniform3f(loc, v.X, v.Y, v.Z)
	case [4]float32:
		gl.Uniform4f(loc, v[0], v[1], v[2], v[3])
	case nil:
		gl.Uniform1f(loc, 0)
	default:
		return fmt.Errorf("uniform %s carries unsupported value type %T", u.Name, u.Value)
	}
	return nil
}

// bindImage uploads an image as an RGBA texture on the given unit and
// points the sampler uniform at it.
func bindImage(prog glgl.Program, name string, img image.Image, unit int32) error {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(b.Dx()), int32(b.Dy()),
		0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
	setSampler(prog, name, unit)
	return glgl.Err()
}

// pingPong is the previous-frame target pair backing feedback uniforms.
type pingPong struct {
	tex  [2]uint32
	fbo  [2]uint32
	cur  int
	unit int32
}

func newPingPong(width, height int) (*pingPong, error) {
	pp := &pingPong{}
	gl.GenTextures(2, &pp.tex[0])
	gl.GenFramebuffers(2, &pp.fbo[0])
	for i := 0; i < 2; i++ {
		gl.BindTexture(gl.TEXTURE_2D, pp.tex[i])
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height),
			0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
		gl.BindFramebuffer(gl.FRAMEBUFFER, pp.fbo[i])
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, pp.tex[i], 0)
		if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
			gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
			pp.delete()
			return nil, fmt.Errorf("feedback framebuffer incomplete: status 0x%x", status)
		}
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return pp, nil
}

func (pp *pingPong) read() uint32     { return pp.tex[pp.cur] }
func (pp *pingPong) writeFBO() uint32 { return pp.fbo[1-pp.cur] }
func (pp *pingPong) swap()            { pp.cur = 1 - pp.cur }

func (pp *pingPong) delete() {
	gl.DeleteFramebuffers(2, &pp.fbo[0])
	gl.DeleteTextures(2, &pp.tex[0])
}
