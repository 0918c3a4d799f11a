//go:build opencl && cgo

package noncehunt

/*
#cgo CFLAGS: -DCL_TARGET_OPENCL_VERSION=120
#cgo linux LDFLAGS: -lOpenCL
#cgo windows LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif
#include <stdlib.h>

typedef struct {
	cl_context ctx;
	cl_command_queue queue;
	cl_program prog;
	cl_kernel kernel;
	cl_mem found, winner;
} nh_device;

static void nh_release(nh_device *d) {
	if (d->found) clReleaseMemObject(d->found);
	if (d->winner) clReleaseMemObject(d->winner);
	if (d->kernel) clReleaseKernel(d->kernel);
	if (d->prog) clReleaseProgram(d->prog);
	if (d->queue) clReleaseCommandQueue(d->queue);
	if (d->ctx) clReleaseContext(d->ctx);
}

// On failure *stage names the step that failed and log holds any build log.
static cl_int nh_open(cl_uint platform, cl_uint device, const char *src, const char *name,
		nh_device *d, int *stage, char *log, size_t logsz) {
	cl_platform_id platforms[16];
	cl_device_id devices[16];
	cl_uint n = 0;
	cl_int err;

	*stage = 0;
	if ((err = clGetPlatformIDs(16, platforms, &n)) != CL_SUCCESS) return err;
	if (platform >= n) return CL_INVALID_PLATFORM;
	*stage = 1;
	if ((err = clGetDeviceIDs(platforms[platform], CL_DEVICE_TYPE_ALL, 16, devices, &n)) != CL_SUCCESS) return err;
	if (device >= n) return CL_INVALID_DEVICE;
	cl_device_id dev = devices[device];

	*stage = 2;
	d->ctx = clCreateContext(NULL, 1, &dev, NULL, NULL, &err);
	if (err != CL_SUCCESS) return err;
	d->queue = clCreateCommandQueue(d->ctx, dev, 0, &err);
	if (err != CL_SUCCESS) return err;

	*stage = 3;
	d->prog = clCreateProgramWithSource(d->ctx, 1, &src, NULL, &err);
	if (err != CL_SUCCESS) return err;
	if ((err = clBuildProgram(d->prog, 1, &dev, "", NULL, NULL)) != CL_SUCCESS) {
		clGetProgramBuildInfo(d->prog, dev, CL_PROGRAM_BUILD_LOG, logsz - 1, log, NULL);
		return err;
	}
	d->kernel = clCreateKernel(d->prog, name, &err);
	if (err != CL_SUCCESS) return err;

	*stage = 4;
	d->found = clCreateBuffer(d->ctx, CL_MEM_READ_WRITE, sizeof(cl_uint), NULL, &err);
	if (err != CL_SUCCESS) return err;
	d->winner = clCreateBuffer(d->ctx, CL_MEM_READ_WRITE, sizeof(cl_uint), NULL, &err);
	if (err != CL_SUCCESS) return err;
	if ((err = clSetKernelArg(d->kernel, 0, sizeof(cl_mem), &d->found)) != CL_SUCCESS) return err;
	return clSetKernelArg(d->kernel, 1, sizeof(cl_mem), &d->winner);
}

// Resets the claim buffers, runs global work items from offset and reads the claim into out.
static cl_int nh_dispatch(nh_device *d, cl_uint target, cl_uint offset, size_t global, cl_uint *out) {
	const cl_uint zero = 0;
	cl_int err;
	if ((err = clEnqueueWriteBuffer(d->queue, d->found, CL_TRUE, 0, sizeof zero, &zero, 0, NULL, NULL)) != CL_SUCCESS) return err;
	if ((err = clEnqueueWriteBuffer(d->queue, d->winner, CL_TRUE, 0, sizeof zero, &zero, 0, NULL, NULL)) != CL_SUCCESS) return err;
	if ((err = clSetKernelArg(d->kernel, 2, sizeof target, &target)) != CL_SUCCESS) return err;
	if ((err = clSetKernelArg(d->kernel, 3, sizeof offset, &offset)) != CL_SUCCESS) return err;
	if ((err = clEnqueueNDRangeKernel(d->queue, d->kernel, 1, NULL, &global, NULL, 0, NULL, NULL)) != CL_SUCCESS) return err;
	if ((err = clFinish(d->queue)) != CL_SUCCESS) return err;
	if ((err = clEnqueueReadBuffer(d->queue, d->found, CL_TRUE, 0, sizeof(cl_uint), &out[0], 0, NULL, NULL)) != CL_SUCCESS) return err;
	return clEnqueueReadBuffer(d->queue, d->winner, CL_TRUE, 0, sizeof(cl_uint), &out[1], 0, NULL, NULL);
}
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.
// A Backend running the rendered kernel on an OpenCL device, one work item per candidate.

const buildLogSize = 1 << 14

var openStages = [...]string{"listing platforms", "listing devices", "creating context",
	"building kernel", "allocating claim buffers"}

// OpenCLOptions selects the device by index among the platforms and devices the OpenCL
// runtime reports. Params defaults to Reduced and must match the Searcher's.
type OpenCLOptions struct {
	Params           Params
	Platform, Device int
}

// OpenCL is a Backend that evaluates candidates on a device. It ignores Job.Eval: the device
// runs its own build of Params, so the driver's host Params must be the same.
type OpenCL struct {
	mu     sync.Mutex /* Serialises use of the command queue against Close. */
	dev    *C.nh_device
	params Params
}

// NewOpenCL builds the kernel for opts.Params on the selected device.
func NewOpenCL(opts OpenCLOptions) (*OpenCL, error) {
	p := opts.Params
	if p.Rounds == 0 && p.K == nil {
		p = Reduced
	}
	if opts.Platform < 0 || opts.Device < 0 {
		return nil, fmt.Errorf("noncehunt: opencl platform %d device %d", opts.Platform, opts.Device)
	}
	src, err := p.Kernel()
	if err != nil {
		return nil, err
	}

	csrc, cname := C.CString(src), C.CString(KernelName)
	defer C.free(unsafe.Pointer(csrc))
	defer C.free(unsafe.Pointer(cname))
	clog := (*C.char)(C.calloc(buildLogSize, 1))
	defer C.free(unsafe.Pointer(clog))

	dev := (*C.nh_device)(C.calloc(1, C.sizeof_nh_device))
	var stage C.int
	if code := C.nh_open(C.cl_uint(opts.Platform), C.cl_uint(opts.Device), csrc, cname, dev,
		&stage, clog, buildLogSize); code != C.CL_SUCCESS {
		C.nh_release(dev)
		C.free(unsafe.Pointer(dev))
		err := fmt.Errorf("noncehunt: opencl %s: error %d", openStages[stage], int(code))
		if msg := C.GoString(clog); msg != "" {
			log.Errorw("kernel build failed", "log", msg)
		}
		return nil, err
	}
	log.Debugw("opencl backend started", "platform", opts.Platform, "device", opts.Device,
		"rounds", p.Rounds)
	return &OpenCL{dev: dev, params: p}, nil
}

// Params returns the configuration the device kernel was built from.
func (o *OpenCL) Params() Params { return o.params }

// Dispatch runs one work item per candidate of job and claims the device's winner, if any.
// A launched kernel cannot be interrupted, so ctx is only consulted before launch.
func (o *OpenCL) Dispatch(ctx context.Context, job Job) error {
	if err := job.check(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.dev == nil:
		return ErrClosed
	case ctx.Err() != nil:
		return ctx.Err()
	case job.Size == 0:
		return nil
	}

	var out [2]C.cl_uint
	if code := C.nh_dispatch(o.dev, C.cl_uint(job.Target), C.cl_uint(job.Offset),
		C.size_t(job.Size), &out[0]); code != C.CL_SUCCESS {
		return fmt.Errorf("noncehunt: opencl dispatch: error %d", int(code))
	}
	if out[0] != 0 {
		job.Claim.Try(uint32(out[1]))
	}
	return nil
}

// Close releases the device. It is safe to call more than once.
func (o *OpenCL) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dev != nil {
		C.nh_release(o.dev)
		C.free(unsafe.Pointer(o.dev))
		o.dev = nil
		log.Debugw("opencl backend stopped")
	}
	return nil
}
