package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Context 包一层 gin.Context，路由和中间件只依赖这里暴露的方法
type Context struct {
	ginCtx *gin.Context
}

func newContext(c *gin.Context) *Context {
	return &Context{ginCtx: c}
}

// GetParam 路径参数，如 /rooms/:roomId
func (c *Context) GetParam(key string) string {
	return c.ginCtx.Param(key)
}

// GetQuery 查询参数，不存在时为空串
func (c *Context) GetQuery(key string) string {
	return c.ginCtx.Query(key)
}

func (c *Context) GetHeader(key string) string {
	return c.ginCtx.GetHeader(key)
}

func (c *Context) SetHeader(key, value string) {
	c.ginCtx.Header(key, value)
}

func (c *Context) Method() string {
	return c.ginCtx.Request.Method
}

// JSON 写响应体，统一格式见 response.go
func (c *Context) JSON(code int, obj any) {
	c.ginCtx.JSON(code, obj)
}

// AbortWithStatus 中止后续处理，预检请求用
func (c *Context) AbortWithStatus(code int) {
	c.ginCtx.AbortWithStatus(code)
}

// Request 原始请求，handler 取 Context() 传给 lobby 查询
func (c *Context) Request() *http.Request {
	return c.ginCtx.Request
}
